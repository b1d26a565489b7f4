// Package cli provides the command-line interface for the crypto tracker.
package cli

import (
	"context"
	"io"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cryptotracker/internal/alerts"
	"cryptotracker/internal/config"
	"cryptotracker/internal/logging"
	"cryptotracker/internal/market"
	"cryptotracker/internal/metrics"
	"cryptotracker/internal/notify"
	"cryptotracker/internal/security"
	"cryptotracker/internal/store"
	"cryptotracker/internal/tracker"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies. Everything past Logger is created
// on first use so that config and version commands never touch the store.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Store    store.DataStore
	Source   market.QuoteSource
	Tracker  *tracker.Tracker
	Registry *prometheus.Registry
	Recorder *metrics.Recorder
}

// Execute runs the CLI with args and releases the store afterwards, including
// when a command fails.
func Execute(ctx context.Context, logger zerolog.Logger, args []string) error {
	app := &App{Logger: logger}
	defer app.Close()

	rootCmd := newRootCmd(app)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	return newRootCmd(&App{Logger: logger})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tracker",
		Short: "Crypto tracker - market prices, favorites and price alerts",
		Long: `Crypto tracker shows market data for the top coins, keeps a list of
favorite coins and fires one-shot notifications when a favorite crosses
a price threshold.

Use 'tracker run' to start the alert loop in the foreground.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/cryptotracker)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	addCoreCommands(rootCmd, app)
	addHelpCommands(rootCmd)
	rootCmd.AddCommand(newCoinsCmd(app))
	rootCmd.AddCommand(newFavoritesCmd(app))
	rootCmd.AddCommand(newAlertsCmd(app))
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newRunCmd(app))

	return rootCmd
}

// init loads configuration and rebuilds the logger from it.
func (a *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg

	level := cfg.Logging.Level
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = "debug"
	}
	a.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      level,
		Console:    true,
		File:       cfg.Logging.File,
		FilePath:   cfg.LogFilePath(),
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Output:     cmd.ErrOrStderr(),
	})
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.Logger))

	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cfg.UI.ColorEnabled = false
	}
	if !cfg.UI.ColorEnabled {
		color.NoColor = true
	}
	return nil
}

// session opens the store and builds the tracker on first use.
func (a *App) session(ctx context.Context) (*tracker.Tracker, error) {
	if a.Tracker != nil {
		return a.Tracker, nil
	}

	ds, err := store.Open(a.Config)
	if err != nil {
		return nil, err
	}
	a.Store = ds
	a.Logger.Debug().Str("driver", a.Config.Store.Driver).Msg("Store opened")

	if a.Source == nil {
		client := market.NewClient(a.clientConfig(), a.Logger)
		a.Source = market.NewBreakerSource(client, market.DefaultBreakerConfig(), a.Logger)
	}
	a.Registry = prometheus.NewRegistry()
	a.Recorder = metrics.NewRecorder(a.Registry)

	tr := tracker.New(a.Source, a.Store, a.Logger, tracker.WithRecorder(a.Recorder))
	if err := tr.SyncFavorites(ctx); err != nil {
		return nil, err
	}
	if err := tr.LoadAlerts(ctx); err != nil {
		return nil, err
	}
	a.Tracker = tr
	return tr, nil
}

func (a *App) clientConfig() market.ClientConfig {
	cc := market.DefaultClientConfig()
	m := a.Config.Market
	cc.BaseURL = m.BaseURL
	cc.VsCurrency = m.VsCurrency
	cc.PerPage = m.PerPage
	if m.RequestTimeout > 0 {
		cc.Timeout = m.RequestTimeout
	}
	if m.MaxRetries > 0 {
		cc.Retry.MaxAttempts = m.MaxRetries
	}
	return cc
}

// evaluator wires the tracker snapshot, the store and the configured sinks.
func (a *App) evaluator(tr *tracker.Tracker, out io.Writer) *alerts.Evaluator {
	sink := notify.NewDispatcherFromConfig(a.Config, out, a.Logger)
	return alerts.NewEvaluator(a.Store, tr, sink, a.Logger,
		alerts.WithRecorder(a.Recorder),
		alerts.WithVibrateDuration(a.Config.Alerts.VibrateDuration),
		alerts.WithOnFired(tr.AlertFired),
	)
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	a.Tracker = nil
	return err
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Crypto Tracker v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := redactedConfig(app.Config)
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			showConfig(output, cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Dir})
			} else {
				output.Println(app.Config.Dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

// redactedConfig returns a copy of cfg that is safe to print. Webhook URLs
// usually carry their token in the path.
func redactedConfig(cfg *config.Config) *config.Config {
	out := *cfg
	out.Credentials = config.Credentials{}
	out.Market.BaseURL = security.MaskSecrets(cfg.Market.BaseURL)
	out.Notifications.Webhook.URL = security.MaskSecrets(cfg.Notifications.Webhook.URL)
	return &out
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Market")
	output.Printf("  Base URL:         %s\n", cfg.Market.BaseURL)
	output.Printf("  Currency:         %s\n", cfg.Market.VsCurrency)
	output.Printf("  Coins:            %d\n", cfg.Market.PerPage)
	output.Printf("  Refresh Interval: %s\n", cfg.Market.RefreshInterval)
	output.Println()

	output.Bold("Alerts")
	output.Printf("  Check Interval:   %s\n", cfg.Alerts.CheckInterval)
	output.Printf("  Vibrate:          %s\n", cfg.Alerts.VibrateDuration)
	output.Println()

	output.Bold("Store")
	output.Printf("  Driver:           %s\n", cfg.Store.Driver)
	if cfg.Store.Driver == "sqlite" {
		output.Printf("  Path:             %s\n", cfg.Store.Path)
	}
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Terminal:         %v\n", cfg.Notifications.Terminal.Enabled)
	output.Printf("  Desktop:          %v\n", cfg.Notifications.Desktop.Enabled)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:         %v\n", cfg.Notifications.Telegram.Enabled)
	output.Printf("  Email:            %v\n", cfg.Notifications.Email.Enabled)

	if cfg.Metrics.Addr != "" {
		output.Println()
		output.Bold("Metrics")
		output.Printf("  Address:          %s\n", cfg.Metrics.Addr)
	}
}
