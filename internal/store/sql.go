package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/models"
)

const queryTimeout = 5 * time.Second

// sqlStore holds the queries shared by the SQLite and Postgres stores.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db       *sql.DB
	numbered bool // $1, $2 placeholders
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// ============================================================================
// Favorites Methods
// ============================================================================

// AddFavorite inserts a favorite or refreshes its display fields. The row is
// updated in place so the coin's alert survives.
func (s *sqlStore) AddFavorite(ctx context.Context, fav *models.Favorite) error {
	if strings.TrimSpace(fav.ID) == "" {
		return errors.NewValidationError("coin_id", fav.ID, "must not be empty")
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ts := now()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO favorite_coins (id, name, symbol, price, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			symbol = excluded.symbol,
			price = excluded.price,
			image = excluded.image,
			updated_at = excluded.updated_at
	`), fav.ID, fav.Name, fav.Symbol, fav.Price, fav.Image, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}

	err = s.db.QueryRowContext(ctx, s.q(`SELECT created_at, updated_at FROM favorite_coins WHERE id = ?`), fav.ID).
		Scan(&fav.CreatedAt, &fav.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to read back favorite: %w", err)
	}
	return nil
}

// RemoveFavorite deletes a favorite; the foreign key cascades to its alert.
func (s *sqlStore) RemoveFavorite(ctx context.Context, coinID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM favorite_coins WHERE id = ?`), coinID); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// GetFavorites returns all favorites, oldest first.
func (s *sqlStore) GetFavorites(ctx context.Context) ([]models.Favorite, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, symbol, price, image, created_at, updated_at
		FROM favorite_coins ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.Name, &f.Symbol, &f.Price, &f.Image, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}

	return favorites, rows.Err()
}

// GetFavorite returns a single favorite by coin id.
func (s *sqlStore) GetFavorite(ctx context.Context, coinID string) (*models.Favorite, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var f models.Favorite
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, name, symbol, price, image, created_at, updated_at
		FROM favorite_coins WHERE id = ?
	`), coinID).Scan(&f.ID, &f.Name, &f.Symbol, &f.Price, &f.Image, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrFavoriteNotFound, "coin %s", coinID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite: %w", err)
	}
	return &f, nil
}

// RefreshFavoritePrices copies the latest quote data onto stored favorites.
func (s *sqlStore) RefreshFavoritePrices(ctx context.Context, quotes []models.Quote) (int, error) {
	if len(quotes) == 0 {
		return 0, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.q(`
		UPDATE favorite_coins SET name = ?, symbol = ?, price = ?, image = ?, updated_at = ?
		WHERE id = ?
	`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	ts := now()
	updated := 0
	for _, q := range quotes {
		res, err := stmt.ExecContext(ctx, q.Name, q.Symbol, q.Price, q.Image, ts, q.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to refresh favorite %s: %w", q.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit favorite refresh: %w", err)
	}
	return updated, nil
}

// ============================================================================
// Alerts Methods
// ============================================================================

const alertColumns = `id, coin_id, coin_name, target_price, direction, revision, created_at, updated_at`

func scanAlert(row interface{ Scan(...any) error }) (models.Alert, error) {
	var a models.Alert
	var direction string
	err := row.Scan(&a.ID, &a.CoinID, &a.CoinName, &a.TargetPrice, &direction, &a.Revision, &a.CreatedAt, &a.UpdatedAt)
	a.Direction = models.AlertDirection(direction)
	return a, err
}

// GetAllAlerts retrieves all alerts in insertion order.
func (s *sqlStore) GetAllAlerts(ctx context.Context) ([]models.Alert, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// GetAlertForCoin retrieves the alert for a coin.
func (s *sqlStore) GetAlertForCoin(ctx context.Context, coinID string) (*models.Alert, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	a, err := scanAlert(s.db.QueryRowContext(ctx, s.q(`SELECT `+alertColumns+` FROM alerts WHERE coin_id = ?`), coinID))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrAlertNotFound, "coin %s", coinID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &a, nil
}

// UpsertAlert saves the alert for alert.CoinID, replacing any existing one.
// The coin must be a favorite.
func (s *sqlStore) UpsertAlert(ctx context.Context, alert *models.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var favName string
	err = tx.QueryRowContext(ctx, s.q(`SELECT name FROM favorite_coins WHERE id = ?`), alert.CoinID).Scan(&favName)
	if err == sql.ErrNoRows {
		return errors.Wrapf(errors.ErrFavoriteNotFound, "coin %s", alert.CoinID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up favorite: %w", err)
	}
	if alert.CoinName == "" {
		alert.CoinName = favName
	}

	ts := now()
	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO alerts (coin_id, coin_name, target_price, direction, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (coin_id) DO UPDATE SET
			coin_name = excluded.coin_name,
			target_price = excluded.target_price,
			direction = excluded.direction,
			revision = alerts.revision + 1,
			updated_at = excluded.updated_at
	`), alert.CoinID, alert.CoinName, alert.TargetPrice, string(alert.Direction), ts, ts)
	if err != nil {
		return fmt.Errorf("failed to upsert alert: %w", err)
	}

	stored, err := scanAlert(tx.QueryRowContext(ctx, s.q(`SELECT `+alertColumns+` FROM alerts WHERE coin_id = ?`), alert.CoinID))
	if err != nil {
		return fmt.Errorf("failed to read back alert: %w", err)
	}
	*alert = stored

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alert: %w", err)
	}
	return nil
}

// DeleteAlertForCoin removes a coin's alert if present.
func (s *sqlStore) DeleteAlertForCoin(ctx context.Context, coinID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM alerts WHERE coin_id = ?`), coinID); err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}

// ConsumeAlert deletes a fired alert unless it was edited or replaced since it
// was read. Row ids are never reused, so a re-created alert never matches.
func (s *sqlStore) ConsumeAlert(ctx context.Context, alert models.Alert) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM alerts WHERE id = ? AND coin_id = ? AND revision = ?`),
		alert.ID, alert.CoinID, alert.Revision)
	if err != nil {
		return false, fmt.Errorf("failed to consume alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to consume alert: %w", err)
	}
	return n > 0, nil
}
