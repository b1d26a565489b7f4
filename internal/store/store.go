// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"

	"cryptotracker/internal/config"
	"cryptotracker/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	AlertStore
	FavoriteStore

	// Lifecycle
	Close() error
}

// AlertStore is the keyed alert table. At most one alert exists per coin id.
type AlertStore interface {
	// GetAllAlerts returns every stored alert in insertion order.
	GetAllAlerts(ctx context.Context) ([]models.Alert, error)
	// GetAlertForCoin returns errors.ErrAlertNotFound when the coin has no alert.
	GetAlertForCoin(ctx context.Context, coinID string) (*models.Alert, error)
	// UpsertAlert inserts or replaces the alert keyed by CoinID and fills in
	// ID, Revision and timestamps from the stored row.
	UpsertAlert(ctx context.Context, alert *models.Alert) error
	// DeleteAlertForCoin is a no-op when no alert exists.
	DeleteAlertForCoin(ctx context.Context, coinID string) error
	// ConsumeAlert deletes the alert only if the stored row still carries the
	// same revision. It reports whether a row was removed.
	ConsumeAlert(ctx context.Context, alert models.Alert) (bool, error)
}

// FavoriteStore is the favorites table. Removing a favorite removes its alert.
type FavoriteStore interface {
	AddFavorite(ctx context.Context, fav *models.Favorite) error
	RemoveFavorite(ctx context.Context, coinID string) error
	GetFavorites(ctx context.Context) ([]models.Favorite, error)
	GetFavorite(ctx context.Context, coinID string) (*models.Favorite, error)
	// RefreshFavoritePrices updates stored favorites from fresh quotes and
	// returns the number of favorites touched.
	RefreshFavoritePrices(ctx context.Context, quotes []models.Quote) (int, error)
}

// Open creates the store selected by cfg.Store.Driver.
func Open(cfg *config.Config) (DataStore, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Store.Path)
	case "postgres":
		return NewPostgresStore(cfg.Credentials.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}
