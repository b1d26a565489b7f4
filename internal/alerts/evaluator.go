// Package alerts checks stored price alerts against the latest quotes and
// fires the ones whose threshold has been crossed.
package alerts

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/logging"
	"cryptotracker/internal/market"
	"cryptotracker/internal/metrics"
	"cryptotracker/internal/models"
	"cryptotracker/internal/notify"
	"cryptotracker/internal/store"
)

// SnapshotSource provides the latest in-memory quotes. The evaluator never
// fetches quotes itself.
type SnapshotSource interface {
	Snapshot() market.Snapshot
}

// SnapshotFunc adapts a function to SnapshotSource.
type SnapshotFunc func() market.Snapshot

// Snapshot calls f.
func (f SnapshotFunc) Snapshot() market.Snapshot { return f() }

// FiredFunc is called after an alert has been consumed and notified.
type FiredFunc func(alert models.Alert, quote models.Quote)

// CycleResult summarizes one evaluation cycle.
type CycleResult struct {
	Checked  int // alerts read from the store
	Fired    []models.Alert
	Deferred int // alerts whose coin had no quote
	Stale    int // fired alerts edited by the user before they could be consumed
	Duration time.Duration
	Err      error // *errors.CycleError when the cycle was aborted
}

// Evaluator runs alert evaluation cycles.
type Evaluator struct {
	store    store.AlertStore
	quotes   SnapshotSource
	sink     notify.Sink
	recorder *metrics.Recorder
	logger   zerolog.Logger
	vibrate  time.Duration
	onFired  FiredFunc
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRecorder records cycle metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Evaluator) { e.recorder = r }
}

// WithVibrateDuration sets the haptic length sent with each fired alert.
func WithVibrateDuration(d time.Duration) Option {
	return func(e *Evaluator) { e.vibrate = d }
}

// WithOnFired registers a hook run for every fired alert.
func WithOnFired(fn FiredFunc) Option {
	return func(e *Evaluator) { e.onFired = fn }
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(alertStore store.AlertStore, quotes SnapshotSource, sink notify.Sink, logger zerolog.Logger, opts ...Option) *Evaluator {
	if sink == nil {
		sink = notify.NoOpSink{}
	}
	e := &Evaluator{
		store:   alertStore,
		quotes:  quotes,
		sink:    sink,
		logger:  logging.WithComponent(logger, "alerts"),
		vibrate: notify.DefaultVibrateDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle performs one evaluation pass:
//
//  1. read all alerts from the store
//  2. match each against the current quote snapshot, skipping coins without a quote
//  3. for each satisfied alert, consume it from the store and then notify
//
// A store failure aborts the rest of the cycle. Alerts are consumed before the
// notification goes out, so a crash between the two loses a notification
// rather than repeating it.
func (e *Evaluator) RunCycle(ctx context.Context) CycleResult {
	start := time.Now()
	res := e.runCycle(ctx)
	res.Duration = time.Since(start)

	e.recorder.ObserveCycle(res.Duration, res.Deferred, res.Err)
	logging.LogCycle(e.logger, res.Checked, len(res.Fired), res.Deferred, res.Duration, res.Err)
	return res
}

func (e *Evaluator) runCycle(ctx context.Context) CycleResult {
	var res CycleResult

	alerts, err := e.store.GetAllAlerts(ctx)
	if err != nil {
		res.Err = errors.NewCycleError("read alerts", classify(err), err)
		return res
	}
	res.Checked = len(alerts)
	if len(alerts) == 0 {
		return res
	}

	snap := e.quotes.Snapshot()

	for _, alert := range alerts {
		if err := ctx.Err(); err != nil {
			res.Err = errors.NewCycleError("evaluate", errors.Recoverable, err)
			return res
		}

		// A null upstream price decodes to zero and counts as no quote.
		quote, ok := snap.Lookup(alert.CoinID)
		if !ok || !quote.Price.IsPositive() {
			res.Deferred++
			continue
		}
		if !alert.IsTriggeredBy(quote.Price) {
			continue
		}

		consumed, err := e.store.ConsumeAlert(ctx, alert)
		if err != nil {
			res.Err = errors.NewCycleError("consume alert "+alert.CoinID, classify(err), err)
			return res
		}
		if !consumed {
			// Edited or removed since it was read; the new version is checked next cycle.
			res.Stale++
			e.logger.Debug().Str("coin_id", alert.CoinID).Int64("revision", alert.Revision).Msg("Alert changed before it could fire")
			continue
		}

		e.fire(ctx, alert, quote)
		res.Fired = append(res.Fired, alert)
	}

	return res
}

func (e *Evaluator) fire(ctx context.Context, alert models.Alert, quote models.Quote) {
	logging.LogAlertFired(e.logger, alert.CoinID, string(alert.Direction), alert.TargetPrice.StringFixed(2), quote.Price.String())
	e.recorder.AlertFired(string(alert.Direction))

	if err := e.sink.Notify(ctx, notify.AlertTitle, alert.Message()); err != nil {
		e.logger.Warn().Err(err).Str("coin_id", alert.CoinID).Msg("Alert notification failed")
	}
	if err := e.sink.Vibrate(ctx, e.vibrate); err != nil {
		e.logger.Warn().Err(err).Str("coin_id", alert.CoinID).Msg("Alert vibrate failed")
	}

	if e.onFired != nil {
		e.onFired(alert, quote)
	}
}

// classify decides whether a store error can clear up by the next cycle.
func classify(err error) errors.Severity {
	// database/sql does not export its closed-DB error.
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "sql: database is closed") {
		return errors.Fatal
	}
	return errors.Recoverable
}
