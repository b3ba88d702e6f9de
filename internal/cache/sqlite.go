package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	written_at INTEGER NOT NULL,
	duration   INTEGER NOT NULL
)`

// SQLiteStore persists entries in a single SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get retrieves an entry
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var (
		value     []byte
		writtenAt int64
		duration  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, written_at, duration FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &writtenAt, &duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache entry: %w", err)
	}

	return &Entry{
		Key:       key,
		Value:     value,
		WrittenAt: time.Unix(0, writtenAt),
		Duration:  time.Duration(duration),
	}, true, nil
}

// Set upserts an entry
func (s *SQLiteStore) Set(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, written_at, duration) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, written_at = excluded.written_at, duration = excluded.duration`,
		entry.Key, entry.Value, entry.WrittenAt.UnixNano(), int64(entry.Duration),
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Keys lists every stored key
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Clear removes all entries
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
