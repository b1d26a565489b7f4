package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/models"
	"cryptotracker/internal/security"
	"cryptotracker/pkg/utils"
)

func newAlertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage price alerts",
		Long: `Manage one-shot price alerts. Each favorite coin can have one alert;
setting a new one replaces the old. An alert is deleted once it fires.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tr, err := app.session(cmd.Context())
			if err != nil {
				return err
			}

			view := tr.Alerts()
			list := make([]models.Alert, 0, len(view))
			for _, a := range view {
				list = append(list, a)
			}
			sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

			if output.IsJSON() {
				return output.JSON(list)
			}
			if len(list) == 0 {
				output.Dim("No pending alerts.")
				return nil
			}

			table := NewTable(output, "COIN", "NAME", "CONDITION", "TARGET", "SET")
			for _, a := range list {
				table.AddRow(
					a.CoinID,
					a.CoinName,
					output.Direction(string(a.Direction)),
					utils.FormatPrice(a.TargetPrice),
					a.UpdatedAt.Local().Format("2006-01-02 15:04"),
				)
			}
			table.Render()
			return nil
		},
	})

	setCmd := &cobra.Command{
		Use:   "set <coin-id> <target-price>",
		Short: "Set or replace the alert for a favorite coin",
		Example: `  tracker alerts set bitcoin 50000
  tracker alerts set ethereum 2000 --below`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tr, err := app.session(cmd.Context())
			if err != nil {
				return err
			}

			direction := models.DirectionAbove
			if below, _ := cmd.Flags().GetBool("below"); below {
				direction = models.DirectionBelow
			}

			coinID, err := security.NormalizeCoinID(args[0])
			if err != nil {
				return err
			}
			alert, err := tr.SaveOrUpdateAlert(cmd.Context(), coinID, args[1], direction)
			if errors.Is(err, errors.ErrFavoriteNotFound) {
				return fmt.Errorf("%s is not a favorite; add it first with 'tracker favorites add %s'", coinID, coinID)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(alert)
			}
			output.Success("🔔 Alert set: %s %s %s", alert.CoinName, alert.Direction.Word(), utils.FormatPrice(alert.TargetPrice))
			return nil
		},
	}
	setCmd.Flags().Bool("below", false, "fire when the price drops to or below the target")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <coin-id>",
		Short: "Remove the alert for a coin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tr, err := app.session(cmd.Context())
			if err != nil {
				return err
			}

			coinID, err := security.NormalizeCoinID(args[0])
			if err != nil {
				return err
			}
			if err := tr.RemoveAlert(cmd.Context(), coinID); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": coinID})
			}
			output.Success("Alert for %s removed", coinID)
			return nil
		},
	})

	return cmd
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Refresh quotes and evaluate alerts once",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tr, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := tr.RefreshQuotes(cmd.Context()); err != nil {
				output.Warning("Quote refresh failed: %v", err)
			}

			res := app.evaluator(tr, cmd.OutOrStdout()).RunCycle(cmd.Context())
			if output.IsJSON() {
				payload := map[string]interface{}{
					"checked":  res.Checked,
					"fired":    res.Fired,
					"deferred": res.Deferred,
				}
				if res.Err != nil {
					payload["error"] = res.Err.Error()
				}
				if err := output.JSON(payload); err != nil {
					return err
				}
				return res.Err
			}

			lines := []string{
				fmt.Sprintf("Checked:  %d", res.Checked),
				fmt.Sprintf("Fired:    %d", len(res.Fired)),
				fmt.Sprintf("Deferred: %d", res.Deferred),
			}
			for _, a := range res.Fired {
				lines = append(lines, "  "+a.Message())
			}
			output.Box("Alert check", lines)
			return res.Err
		},
	}
}
