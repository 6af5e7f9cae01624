package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// UpdateStore tracks when each upstream endpoint was last synced. A zero
// time means the endpoint was never synced.
type UpdateStore interface {
	LastUpdate(ctx context.Context, endpoint string) (time.Time, error)
	SetLastUpdate(ctx context.Context, endpoint string, at time.Time) error
	Endpoints(ctx context.Context) (map[string]time.Time, error)
}

// PostgresStore persists last-update timestamps in Postgres.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresStore opens a connection pool against dsn and verifies it.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach ledger store: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sync_last_update (
  endpoint TEXT PRIMARY KEY,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`)
	})
	return s.schemaErr
}

// LastUpdate implements UpdateStore.
func (s *PostgresStore) LastUpdate(ctx context.Context, endpoint string) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM sync_last_update WHERE endpoint = $1`, endpoint).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last update for '%s': %w", endpoint, err)
	}
	return at, nil
}

// SetLastUpdate implements UpdateStore.
func (s *PostgresStore) SetLastUpdate(ctx context.Context, endpoint string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sync_last_update (endpoint, updated_at) VALUES ($1, $2)
ON CONFLICT (endpoint) DO UPDATE SET updated_at = EXCLUDED.updated_at
`, endpoint, at)
	if err != nil {
		return fmt.Errorf("failed to record last update for '%s': %w", endpoint, err)
	}
	return nil
}

// Endpoints implements UpdateStore.
func (s *PostgresStore) Endpoints(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT endpoint, updated_at FROM sync_last_update`)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var endpoint string
		var at time.Time
		if err := rows.Scan(&endpoint, &at); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint row: %w", err)
		}
		out[endpoint] = at
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
