package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"cryptotracker/internal/alerts"
	"cryptotracker/internal/logging"
	"cryptotracker/internal/metrics"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the quote refresh and alert loops in the foreground",
		Long: `Refresh quotes on the market interval and check alerts on the alert
interval until interrupted. Fired alerts go to every enabled notification
channel.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			tr, err := app.session(ctx)
			if err != nil {
				return err
			}
			// Alerts on coins without a quote wait for the next refresh.
			if err := tr.RefreshQuotes(ctx); err != nil {
				output.Warning("Initial quote refresh failed: %v", err)
			}

			once, _ := cmd.Flags().GetBool("once")
			monitorCfg := alerts.MonitorConfig{Interval: cfg.Alerts.CheckInterval}
			if once {
				monitorCfg.MaxCycles = 1
			}

			closedRefresh := make(chan struct{})
			close(closedRefresh)
			var refreshDone <-chan struct{} = closedRefresh
			metricsDone := make(chan struct{})
			close(metricsDone)

			if !once {
				refreshDone = tr.StartRefreshLoop(ctx, cfg.Market.RefreshInterval)

				if addr := cfg.Metrics.Addr; addr != "" {
					metricsDone = make(chan struct{})
					go func() {
						defer close(metricsDone)
						if err := metrics.Serve(ctx, addr, app.Registry); err != nil {
							logger := logging.FromContext(ctx)
							logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
						}
					}()
				}
			}

			evaluator := app.evaluator(tr, cmd.OutOrStdout())
			monitor := alerts.NewMonitor(evaluator, monitorCfg, app.Logger)
			if err := monitor.Start(ctx); err != nil {
				return err
			}

			if !once {
				output.Info("🔔 Watching %d alert(s) on %d favorite(s)", len(tr.Alerts()), len(tr.Favorites()))
				output.Dim("Checking every %s, refreshing quotes every %s. Press Ctrl+C to stop.",
					cfg.Alerts.CheckInterval, refreshLabel(cfg.Market.RefreshInterval))
				if cfg.Metrics.Addr != "" {
					output.Dim("Metrics on http://%s/metrics", cfg.Metrics.Addr)
				}
			}

			select {
			case <-ctx.Done():
			case <-monitor.Done():
			}

			monitor.Stop()
			cancel()
			<-refreshDone
			<-metricsDone

			if err := monitor.Err(); err != nil {
				output.Error("Alert loop stopped: %v", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().Bool("once", false, "run a single alert cycle and exit")
	return cmd
}

func refreshLabel(d time.Duration) string {
	if d <= 0 {
		return "never"
	}
	return d.String()
}
