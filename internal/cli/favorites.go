package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/security"
	"cryptotracker/pkg/utils"
)

func coinNotFound(coinID string) error {
	return errors.Wrapf(errors.ErrCoinNotFound, "%s is not in the current market table", coinID)
}

func newFavoritesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage favorite coins",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List favorite coins with their last known price",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tr, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			favs, err := tr.LoadFavorites(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(favs)
			}
			if len(favs) == 0 {
				output.Dim("No favorites yet. Add one with 'tracker favorites add <coin-id>'.")
				return nil
			}

			alertView := tr.Alerts()
			table := NewTable(output, "COIN", "NAME", "SYMBOL", "LAST PRICE", "ALERT", "UPDATED")
			for _, f := range favs {
				alert := output.DimText("-")
				if a, ok := alertView[f.ID]; ok {
					alert = output.Direction(string(a.Direction)) + " " + utils.FormatPrice(a.TargetPrice)
				}
				table.AddRow(
					f.ID,
					f.Name,
					strings.ToUpper(f.Symbol),
					utils.FormatPrice(f.Price),
					alert,
					f.UpdatedAt.Local().Format("2006-01-02 15:04"),
				)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <coin-id>",
		Short: "Add a coin from the market table to favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			coinID, err := security.NormalizeCoinID(args[0])
			if err != nil {
				return err
			}

			q, err := findQuote(app, cmd, coinID)
			if err != nil {
				return err
			}
			if app.Tracker.IsFavorite(coinID) {
				output.Warning("%s is already a favorite", q.Name)
				return nil
			}
			if _, err := app.Tracker.ToggleFavorite(cmd.Context(), q); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"added": coinID})
			}
			output.Success("★ Added %s (%s) at %s", q.Name, strings.ToUpper(q.Symbol), utils.FormatPrice(q.Price))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <coin-id>",
		Short: "Remove a favorite and its alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			coinID, err := security.NormalizeCoinID(args[0])
			if err != nil {
				return err
			}

			tr, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			if !tr.IsFavorite(coinID) {
				return errors.Wrapf(errors.ErrFavoriteNotFound, "%s", coinID)
			}
			_, hadAlert := tr.Alerts()[coinID]
			if err := tr.RemoveFavorite(cmd.Context(), coinID); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"removed": coinID, "alert_removed": hadAlert})
			}
			output.Success("Removed %s from favorites", coinID)
			if hadAlert {
				output.Dim("Its price alert was removed too.")
			}
			return nil
		},
	})

	return cmd
}
