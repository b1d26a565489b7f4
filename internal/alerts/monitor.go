package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/logging"
)

// DefaultInterval is the delay between the end of one cycle and the start of
// the next.
const DefaultInterval = 30 * time.Second

// CycleRunner runs one evaluation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) CycleResult
}

// MonitorConfig configures the alert loop.
type MonitorConfig struct {
	Interval  time.Duration
	MaxCycles int // 0 runs until stopped
	// OnCycle, if set, observes every cycle result.
	OnCycle func(CycleResult)
}

// Monitor drives a CycleRunner on a fixed delay. Cycles never overlap: the
// next delay starts only after the previous cycle returns, so a suspended
// process resumes with a single cycle rather than a burst.
type Monitor struct {
	runner CycleRunner
	cfg    MonitorConfig
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	cycles  int
}

// NewMonitor creates a Monitor.
func NewMonitor(runner CycleRunner, cfg MonitorConfig, logger zerolog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	done := make(chan struct{})
	close(done)
	return &Monitor{
		runner: runner,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "alert-monitor"),
		done:   done,
	}
}

// Start launches the loop in a goroutine. The first cycle runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.ErrMonitorRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.err = nil
	m.cycles = 0

	go func() {
		err := m.Run(ctx)

		m.mu.Lock()
		m.err = err
		m.running = false
		close(m.done)
		m.mu.Unlock()
		cancel()
	}()

	m.logger.Info().Dur("interval", m.cfg.Interval).Msg("Alert monitor started")
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Done is closed when the loop exits.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Err returns the fatal error of the latest failed cycle. A later cycle that
// completes cleanly clears it.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Cycles returns how many cycles have completed.
func (m *Monitor) Cycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}

// Run executes the loop on the calling goroutine until ctx is done or
// MaxCycles is reached. No cycle error ends the loop; fatal ones are kept for
// Err and returned when the loop exits.
func (m *Monitor) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Alert monitor stopped")
			return m.Err()
		case <-timer.C:
		}

		res := m.runner.RunCycle(ctx)
		fatal := res.Err != nil && errors.IsFatal(res.Err)

		m.mu.Lock()
		m.cycles++
		n := m.cycles
		switch {
		case fatal:
			m.err = res.Err
		case res.Err == nil:
			m.err = nil
		}
		m.mu.Unlock()

		if m.cfg.OnCycle != nil {
			m.cfg.OnCycle(res)
		}

		switch {
		case fatal:
			m.logger.Error().Err(res.Err).Int("cycle", n).Msg("Alert cycle failed fatally, retrying next interval")
		case res.Err != nil && ctx.Err() == nil:
			m.logger.Warn().Err(res.Err).Int("cycle", n).Msg("Alert cycle aborted, retrying next interval")
		}

		if m.cfg.MaxCycles > 0 && n >= m.cfg.MaxCycles {
			return m.Err()
		}

		timer.Reset(m.cfg.Interval)
	}
}
