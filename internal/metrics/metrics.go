// Package metrics exposes Prometheus instrumentation for the alert loop.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptotracker"

// Recorder holds the tracker's collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	alertsFired   *prometheus.CounterVec
	alertsSkipped prometheus.Counter
	refreshes     *prometheus.CounterVec
	quotes        prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_cycles_total",
				Help:      "Alert evaluation cycles by result",
			},
			[]string{"result"},
		),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_cycle_duration_seconds",
			Help:      "Duration of alert evaluation cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		alertsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_fired_total",
				Help:      "Alerts that crossed their threshold",
			},
			[]string{"direction"},
		),
		alertsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_deferred_total",
			Help:      "Alert checks skipped because no quote was available",
		}),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_refreshes_total",
				Help:      "Quote source refreshes by result",
			},
			[]string{"result"},
		),
		quotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quotes_in_snapshot",
			Help:      "Number of quotes in the current snapshot",
		}),
	}

	reg.MustRegister(r.cycles, r.cycleDuration, r.alertsFired, r.alertsSkipped, r.refreshes, r.quotes)
	return r
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCycle records one evaluation cycle.
func (r *Recorder) ObserveCycle(d time.Duration, deferred int, err error) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(result(err)).Inc()
	r.cycleDuration.Observe(d.Seconds())
	r.alertsSkipped.Add(float64(deferred))
}

// AlertFired records a fired alert.
func (r *Recorder) AlertFired(direction string) {
	if r == nil {
		return
	}
	r.alertsFired.WithLabelValues(direction).Inc()
}

// ObserveRefresh records a quote refresh.
func (r *Recorder) ObserveRefresh(quotes int, err error) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(result(err)).Inc()
	if err == nil {
		r.quotes.Set(float64(quotes))
	}
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
