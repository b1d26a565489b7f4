package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"cryptotracker/internal/security"
)

// PostgresStore implements DataStore using PostgreSQL.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, security.RedactError(fmt.Errorf("failed to open database: %w", err), dsn)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, security.RedactError(fmt.Errorf("failed to connect to postgres: %w", err), dsn)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &PostgresStore{sqlStore: &sqlStore{db: db, numbered: true}}

	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS favorite_coins (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    symbol TEXT NOT NULL,
    price NUMERIC(30,10) NOT NULL DEFAULT 0,
    image TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
    id BIGSERIAL PRIMARY KEY,
    coin_id TEXT NOT NULL UNIQUE REFERENCES favorite_coins(id) ON DELETE CASCADE,
    coin_name TEXT NOT NULL,
    target_price NUMERIC(30,10) NOT NULL,
    direction VARCHAR(5) NOT NULL DEFAULT 'ABOVE' CHECK (direction IN ('ABOVE', 'BELOW')),
    revision BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`

	_, err := s.db.Exec(schema)
	return err
}
