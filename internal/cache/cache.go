package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/discussed/internal/metrics"
)

// Entry is one cached response payload
type Entry struct {
	Key       string        `json:"key"`
	Value     []byte        `json:"value"`
	WrittenAt time.Time     `json:"written_at"`
	Duration  time.Duration `json:"duration"`
}

// Expired reports whether the entry outlived its duration at now
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.WrittenAt) > e.Duration
}

// Store is the key-value persistence behind the cache.
// Get never checks expiry; the Sweeper enumerates Keys and deletes stale entries.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Close() error
}

// FetchFunc produces the value for a cache miss
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cacher wraps outbound calls with a cache-first read through a Store
type Cacher struct {
	store Store
	now   func() time.Time
}

// New creates a cacher over store
func New(store Store) *Cacher {
	return &Cacher{store: store, now: time.Now}
}

// Store returns the underlying store
func (c *Cacher) Store() Store {
	return c.store
}

// Call returns the stored value for key or, on a miss, the result of fetch.
//
// A stored value is returned without an expiry check. Storage failures degrade to a
// direct call of fetch; only fetch errors are returned. Concurrent misses on the
// same key may both fetch, and the later write wins.
func (c *Cacher) Call(ctx context.Context, key string, duration time.Duration, fetch FetchFunc) ([]byte, error) {
	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed; fetching directly")
	} else if found {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return entry.Value, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	entry = &Entry{
		Key:       key,
		Value:     value,
		WrittenAt: c.now(),
		Duration:  duration,
	}
	if err := c.store.Set(ctx, entry); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}

	return value, nil
}

// CacheKey hashes a request key into a filesystem- and column-safe digest
func CacheKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return "discussed:v1:" + hex.EncodeToString(hash[:])
}

// Open creates the store named by backend
func Open(ctx context.Context, backend, dir, dsn string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "disk":
		if dir == "" {
			return nil, fmt.Errorf("disk cache requires a directory")
		}
		return NewLayeredStore(NewMemoryStore(), NewDiskStore(dir)), nil
	case "sqlite":
		if dsn == "" {
			dsn = "file:discussed-cache.db"
		}
		s, err := NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		return NewLayeredStore(NewMemoryStore(), s), nil
	case "postgres":
		s, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewLayeredStore(NewMemoryStore(), s), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, disk, sqlite, postgres)", backend)
	}
}
