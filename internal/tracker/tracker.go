// Package tracker holds the session state shared by the CLI, the quote
// refresh loop and the alert monitor: the latest quote snapshot, the favorite
// set and the in-memory alert view.
package tracker

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/logging"
	"cryptotracker/internal/market"
	"cryptotracker/internal/metrics"
	"cryptotracker/internal/models"
	"cryptotracker/internal/security"
	"cryptotracker/internal/store"
)

// Tracker is the single owner of session state. All methods are safe for
// concurrent use.
type Tracker struct {
	source   market.QuoteSource
	store    store.DataStore
	recorder *metrics.Recorder
	logger   zerolog.Logger

	mu        sync.RWMutex
	snapshot  market.Snapshot
	loading   bool
	favorites map[string]struct{}
	alerts    map[string]models.Alert
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecorder records quote refresh metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

// New creates a Tracker with an empty snapshot.
func New(source market.QuoteSource, dataStore store.DataStore, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		source:    source,
		store:     dataStore,
		logger:    logging.WithComponent(logger, "tracker"),
		favorites: make(map[string]struct{}),
		alerts:    make(map[string]models.Alert),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ============================================================================
// Quotes
// ============================================================================

// RefreshQuotes fetches fresh quotes and replaces the snapshot. On failure the
// previous snapshot is kept. Stored favorites pick up the new prices.
func (t *Tracker) RefreshQuotes(ctx context.Context) error {
	t.setLoading(true)
	defer t.setLoading(false)

	quotes, err := t.source.FetchMarkets(ctx)
	t.recorder.ObserveRefresh(len(quotes), err)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Quote refresh failed, keeping previous snapshot")
		return errors.Wrap(err, "refresh quotes")
	}

	snap := market.NewSnapshot(quotes, time.Now())
	t.mu.Lock()
	t.snapshot = snap
	t.mu.Unlock()

	n, err := t.store.RefreshFavoritePrices(ctx, quotes)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to refresh favorite prices")
	}
	t.logger.Debug().Int("quotes", snap.Len()).Int("favorites_updated", n).Msg("Quotes refreshed")
	return nil
}

func (t *Tracker) setLoading(v bool) {
	t.mu.Lock()
	t.loading = v
	t.mu.Unlock()
}

// Snapshot returns the current quote snapshot.
func (t *Tracker) Snapshot() market.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Quotes returns the current quotes in market-cap order.
func (t *Tracker) Quotes() []models.Quote {
	return t.Snapshot().Quotes()
}

// Quote looks up one coin in the current snapshot.
func (t *Tracker) Quote(coinID string) (models.Quote, bool) {
	return t.Snapshot().Lookup(coinID)
}

// IsLoading reports whether a refresh is in flight.
func (t *Tracker) IsLoading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loading
}

// StartRefreshLoop refreshes quotes every interval until ctx is done. The
// returned channel is closed when the loop exits. A non-positive interval
// disables the loop.
func (t *Tracker) StartRefreshLoop(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			// Errors are already logged; the old snapshot stays in place.
			_ = t.RefreshQuotes(ctx)
			timer.Reset(interval)
		}
	}()
	return done
}

// ============================================================================
// Favorites
// ============================================================================

// ToggleFavorite adds the coin to favorites, or removes it (and its alert) if
// it is already one. It reports whether the coin is a favorite afterwards.
func (t *Tracker) ToggleFavorite(ctx context.Context, quote models.Quote) (bool, error) {
	if strings.TrimSpace(quote.ID) == "" {
		return false, errors.NewValidationError("coin_id", quote.ID, "must not be empty")
	}

	_, err := t.store.GetFavorite(ctx, quote.ID)
	switch {
	case err == nil:
		return false, t.RemoveFavorite(ctx, quote.ID)
	case errors.Is(err, errors.ErrFavoriteNotFound):
	default:
		return false, err
	}

	fav := models.FavoriteFromQuote(quote)
	if err := t.store.AddFavorite(ctx, &fav); err != nil {
		return false, err
	}

	t.mu.Lock()
	t.favorites[quote.ID] = struct{}{}
	t.mu.Unlock()

	t.logger.Info().Str("coin_id", quote.ID).Msg("Favorite added")
	return true, nil
}

// RemoveFavorite removes a favorite. Its alert goes with it.
func (t *Tracker) RemoveFavorite(ctx context.Context, coinID string) error {
	if err := t.store.RemoveFavorite(ctx, coinID); err != nil {
		return err
	}

	t.mu.Lock()
	delete(t.favorites, coinID)
	delete(t.alerts, coinID)
	t.mu.Unlock()

	t.logger.Info().Str("coin_id", coinID).Msg("Favorite removed")
	return nil
}

// SyncFavorites reloads the favorite id set from the store.
func (t *Tracker) SyncFavorites(ctx context.Context) error {
	_, err := t.LoadFavorites(ctx)
	return err
}

// LoadFavorites returns the stored favorites and refreshes the id set.
func (t *Tracker) LoadFavorites(ctx context.Context) ([]models.Favorite, error) {
	favs, err := t.store.GetFavorites(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(favs))
	for _, f := range favs {
		ids[f.ID] = struct{}{}
	}

	t.mu.Lock()
	t.favorites = ids
	t.mu.Unlock()
	return favs, nil
}

// Favorites returns the favorite coin ids, sorted.
func (t *Tracker) Favorites() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.favorites))
	for id := range t.favorites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsFavorite reports whether coinID is in the favorite set.
func (t *Tracker) IsFavorite(coinID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.favorites[coinID]
	return ok
}

// ============================================================================
// Alerts
// ============================================================================

// LoadAlerts reloads the alert view from the store.
func (t *Tracker) LoadAlerts(ctx context.Context) error {
	list, err := t.store.GetAllAlerts(ctx)
	if err != nil {
		return err
	}

	view := make(map[string]models.Alert, len(list))
	for _, a := range list {
		view[a.CoinID] = a
	}

	t.mu.Lock()
	t.alerts = view
	t.mu.Unlock()
	return nil
}

// Alerts returns a copy of the alert view keyed by coin id.
func (t *Tracker) Alerts() map[string]models.Alert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]models.Alert, len(t.alerts))
	for k, v := range t.alerts {
		out[k] = v
	}
	return out
}

// SaveOrUpdateAlert sets the alert for a favorite coin, replacing any existing
// one. rawTarget is user input; it must parse as a positive number.
func (t *Tracker) SaveOrUpdateAlert(ctx context.Context, coinID, rawTarget string, direction models.AlertDirection) (*models.Alert, error) {
	coinID, err := security.NormalizeCoinID(coinID)
	if err != nil {
		return nil, err
	}
	target, err := models.ParseTargetPrice(rawTarget)
	if err != nil {
		return nil, err
	}

	alert := &models.Alert{
		CoinID:      coinID,
		TargetPrice: target,
		Direction:   direction,
	}
	if q, ok := t.Quote(alert.CoinID); ok {
		alert.CoinName = q.Name
	}
	if err := alert.Validate(); err != nil {
		return nil, err
	}

	if err := t.store.UpsertAlert(ctx, alert); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.alerts[alert.CoinID] = *alert
	t.mu.Unlock()

	coinLog := logging.WithCoin(t.logger, alert.CoinID)
	coinLog.Info().
		Str("direction", string(alert.Direction)).
		Str("target", alert.TargetPrice.String()).
		Int64("revision", alert.Revision).
		Msg("Alert saved")
	return alert, nil
}

// RemoveAlert deletes the alert for a coin. Removing a missing alert is not
// an error.
func (t *Tracker) RemoveAlert(ctx context.Context, coinID string) error {
	if err := t.store.DeleteAlertForCoin(ctx, coinID); err != nil {
		return err
	}
	t.ForgetAlert(coinID)
	return nil
}

// ForgetAlert drops a coin's alert from the in-memory view without touching
// the store.
func (t *Tracker) ForgetAlert(coinID string) {
	t.mu.Lock()
	delete(t.alerts, coinID)
	t.mu.Unlock()
}

// AlertFired updates the view after the evaluator consumed an alert. An alert
// edited or re-created in the meantime is kept.
func (t *Tracker) AlertFired(alert models.Alert, _ models.Quote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.alerts[alert.CoinID]; ok && (cur.ID != alert.ID || cur.Revision > alert.Revision) {
		return
	}
	delete(t.alerts, alert.CoinID)
}
