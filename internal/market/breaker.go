package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/logging"
	"cryptotracker/internal/models"
)

// CircuitState is the state of a BreakerSource.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failed fetches that opens
	// the circuit.
	FailureThreshold int
	// CoolDown is how long an open circuit rejects fetches before one trial
	// fetch is let through.
	CoolDown time.Duration
}

// DefaultBreakerConfig returns the defaults used by the CLI.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		CoolDown:         2 * time.Minute,
	}
}

// BreakerSource stops calling a failing QuoteSource for a while so a rate
// limited upstream is not hit on every refresh tick.
type BreakerSource struct {
	source QuoteSource
	cfg    BreakerConfig
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreakerSource wraps source.
func NewBreakerSource(source QuoteSource, cfg BreakerConfig, logger zerolog.Logger) *BreakerSource {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = DefaultBreakerConfig().CoolDown
	}
	return &BreakerSource{
		source: source,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "market-breaker"),
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// FetchMarkets forwards to the wrapped source unless the circuit is open.
// A cancelled fetch is not counted as a failure.
func (b *BreakerSource) FetchMarkets(ctx context.Context) ([]models.Quote, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}

	quotes, err := b.source.FetchMarkets(ctx)
	switch {
	case err == nil:
		b.recordSuccess()
	case ctx.Err() != nil:
		b.release()
	default:
		b.recordFailure()
	}
	return quotes, err
}

func (b *BreakerSource) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.openedAt) < b.cfg.CoolDown {
			return errors.ErrCircuitOpen
		}
		b.transitionTo(CircuitHalfOpen)
		b.trial = true
		return nil
	case CircuitHalfOpen:
		// One trial fetch at a time.
		if b.trial {
			return errors.ErrCircuitOpen
		}
		b.trial = true
	}
	return nil
}

func (b *BreakerSource) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitClosed {
		b.logger.Info().Msg("Quote source recovered, circuit closed")
	}
	b.transitionTo(CircuitClosed)
}

func (b *BreakerSource) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	case CircuitHalfOpen:
		b.open()
	}
}

func (b *BreakerSource) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
}

func (b *BreakerSource) open() {
	b.transitionTo(CircuitOpen)
	b.openedAt = b.now()
	b.logger.Warn().Dur("cool_down", b.cfg.CoolDown).Msg("Quote source failing, circuit opened")
}

func (b *BreakerSource) transitionTo(state CircuitState) {
	b.state = state
	b.failures = 0
	b.trial = false
}

// State returns the current circuit state.
func (b *BreakerSource) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
