package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cryptotracker/internal/models"
	"cryptotracker/pkg/utils"
)

func newCoinsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "coins",
		Short: "Show the top coins by market cap",
		Long:  "Fetch the current market table. Favorites are marked with a star.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tr, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := tr.RefreshQuotes(cmd.Context()); err != nil {
				output.Error("Failed to fetch quotes: %v", err)
				return err
			}

			quotes := tr.Quotes()
			if output.IsJSON() {
				return output.JSON(quotes)
			}

			output.Info("📊 Top %d coins", len(quotes))
			output.Println()
			table := NewTable(output, "", "#", "COIN", "SYMBOL", "PRICE", "24H", "MARKET CAP")
			for i, q := range quotes {
				star := " "
				if tr.IsFavorite(q.ID) {
					star = output.Yellow("★")
				}
				table.AddRow(
					star,
					fmt.Sprintf("%d", i+1),
					q.Name,
					strings.ToUpper(q.Symbol),
					utils.FormatPrice(q.Price),
					output.Change(q.Change24h, utils.FormatPercent(q.Change24h)),
					utils.FormatCompact(q.MarketCap),
				)
			}
			table.Render()
			return nil
		},
	}
}

// findQuote refreshes the market table and looks up coinID in it.
func findQuote(app *App, cmd *cobra.Command, coinID string) (models.Quote, error) {
	tr, err := app.session(cmd.Context())
	if err != nil {
		return models.Quote{}, err
	}
	if err := tr.RefreshQuotes(cmd.Context()); err != nil {
		return models.Quote{}, err
	}
	q, ok := tr.Quote(coinID)
	if !ok {
		return models.Quote{}, coinNotFound(coinID)
	}
	return q, nil
}
