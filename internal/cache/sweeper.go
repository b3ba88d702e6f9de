package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/discussed/internal/metrics"
)

// Sweeper periodically deletes entries older than their duration
type Sweeper struct {
	store    Store
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a sweeper over store
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval, now: time.Now}
}

// Sweep runs one pass and returns how many entries were deleted.
// Entries that disappear between listing and reading are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	deleted := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		entry, found, err := s.store.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Sweep: read failed")
			continue
		}
		if !found || !entry.Expired(now) {
			continue
		}

		if err := s.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Sweep: delete failed")
			continue
		}
		deleted++
	}

	metrics.CacheEvictions.Add(float64(deleted))
	return deleted, nil
}

// Run sweeps every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Cache sweep failed")
				continue
			}
			log.Debug().Int("deleted", n).Msg("Cache sweep complete")
		}
	}
}
