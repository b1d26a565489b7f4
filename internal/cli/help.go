package cli

import (
	"github.com/spf13/cobra"
)

func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

type commandHelp struct {
	cmd  string
	desc string
}

var commandCategories = []struct {
	name     string
	commands []commandHelp
}{
	{
		name: "Market",
		commands: []commandHelp{
			{"coins", "Top coins by market cap, favorites starred"},
		},
	},
	{
		name: "Favorites",
		commands: []commandHelp{
			{"favorites list", "Favorites with last known price and alert"},
			{"favorites add <coin-id>", "Add a coin from the market table"},
			{"favorites remove <coin-id>", "Remove a favorite and its alert"},
		},
	},
	{
		name: "Alerts",
		commands: []commandHelp{
			{"alerts list", "Pending alerts"},
			{"alerts set <coin-id> <price>", "Fire when the price reaches the target"},
			{"alerts set <coin-id> <price> --below", "Fire when the price drops to the target"},
			{"alerts remove <coin-id>", "Remove an alert"},
			{"check", "Refresh quotes and evaluate alerts once"},
			{"run", "Run the alert monitor in the foreground"},
		},
	},
	{
		name: "Utility",
		commands: []commandHelp{
			{"config show", "Show the loaded configuration"},
			{"config path", "Show the config directory"},
			{"config validate", "Validate the configuration"},
			{"version", "Print version information"},
		},
	},
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List all commands by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if output.IsJSON() {
				out := make(map[string][]string, len(commandCategories))
				for _, c := range commandCategories {
					for _, h := range c.commands {
						out[c.name] = append(out[c.name], h.cmd)
					}
				}
				return output.JSON(out)
			}

			output.Bold("Crypto Tracker Commands")
			output.Println()
			for _, c := range commandCategories {
				output.Printf("%s\n", output.Cyan(c.name))
				for _, h := range c.commands {
					output.Printf("  %-46s %s\n", "tracker "+h.cmd, output.DimText(h.desc))
				}
				output.Println()
			}
			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Crypto Tracker - Quick Start")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{"Look at the market", "Fetch the top coins from CoinGecko.", "tracker coins"},
				{"Pick favorites", "Alerts can only be set on favorites.", "tracker favorites add bitcoin"},
				{"Set an alert", "Alerts fire once and are then deleted.", "tracker alerts set bitcoin 50000"},
				{"Start the monitor", "Checks every favorite on each cycle until interrupted.", "tracker run"},
			}
			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), i+1, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Configuration Files")
			output.Printf("  %s - market, alert and notification settings\n", output.Cyan("config.toml"))
			output.Printf("  %s - Telegram, SMTP and Postgres secrets\n", output.Cyan("credentials.toml"))
			return nil
		},
	}
}
