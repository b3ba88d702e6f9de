package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS discussed_cache (
	key         TEXT PRIMARY KEY,
	value       BYTEA NOT NULL,
	written_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
)`

// PostgresStore persists entries in a shared Postgres table so several
// instances can use one cache
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the cache table exists
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres cache requires a DSN")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Get retrieves an entry
func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	entry := &Entry{Key: key}
	var durationMS int64
	err := s.pool.QueryRow(ctx,
		`SELECT value, written_at, duration_ms FROM discussed_cache WHERE key = $1`, key,
	).Scan(&entry.Value, &entry.WrittenAt, &durationMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache entry: %w", err)
	}
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	return entry, true, nil
}

// Set upserts an entry
func (s *PostgresStore) Set(ctx context.Context, entry *Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO discussed_cache (key, value, written_at, duration_ms) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, written_at = EXCLUDED.written_at, duration_ms = EXCLUDED.duration_ms`,
		entry.Key, entry.Value, entry.WrittenAt, entry.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM discussed_cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Keys lists every stored key
func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM discussed_cache`)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan cache keys: %w", err)
	}
	return keys, nil
}

// Clear removes all entries
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE discussed_cache`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
