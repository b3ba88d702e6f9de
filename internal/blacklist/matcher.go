package blacklist

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Update is delivered by a Source when the stored blacklist changes
type Update struct {
	NewValue *Blacklist
}

// Source loads the blacklist and notifies about changes
type Source interface {
	// Load reads the current blacklist
	Load(ctx context.Context) (*Blacklist, error)

	// Subscribe registers fn for change notifications until ctx is done
	Subscribe(ctx context.Context, fn func(Update)) error
}

// FailMode decides what an unloaded matcher answers
type FailMode int

const (
	// FailOpen treats every URL as allowed until a load succeeds
	FailOpen FailMode = iota
	// FailClosed treats every URL as blacklisted until a load succeeds
	FailClosed
)

// ParseFailMode maps a config value to a FailMode
func ParseFailMode(s string) FailMode {
	if s == "fail_closed" {
		return FailClosed
	}
	return FailOpen
}

// Matcher answers blacklist checks against an owned in-memory snapshot.
//
// The snapshot is a soft cache: it is loaded on first use and replaced when the
// source reports a change. Checks that race a reload see the previous snapshot,
// so the matcher is eventually consistent and never blocks readers on a reload.
type Matcher struct {
	source   Source
	failMode FailMode

	mu       sync.RWMutex
	snapshot *Snapshot

	loads singleflight.Group
}

// NewMatcher creates a matcher backed by source
func NewMatcher(source Source, failMode FailMode) *Matcher {
	return &Matcher{
		source:   source,
		failMode: failMode,
	}
}

// Ensure loads the snapshot if none is held yet. Concurrent callers share one load.
func (m *Matcher) Ensure(ctx context.Context) error {
	if m.current() != nil {
		return nil
	}
	_, err, _ := m.loads.Do("load", func() (interface{}, error) {
		if m.current() != nil {
			return nil, nil
		}
		return nil, m.Reload(ctx)
	})
	return err
}

// Reload replaces the snapshot with a fresh read from the source
func (m *Matcher) Reload(ctx context.Context) error {
	b, err := m.source.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Blacklist load failed")
		return err
	}
	m.Set(b)
	return nil
}

// Set installs b as the current snapshot
func (m *Matcher) Set(b *Blacklist) {
	snap := Compile(b)
	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()
	log.Debug().
		Int("hostnames", len(snap.hostnames)).
		Int("urls", len(snap.urls)).
		Ints("subdomain_lengths", snap.lengths).
		Msg("Blacklist snapshot installed")
}

// Invalidate drops the snapshot; the next check triggers a reload
func (m *Matcher) Invalidate() {
	m.mu.Lock()
	m.snapshot = nil
	m.mu.Unlock()
}

// Watch applies source change notifications until ctx is done
func (m *Matcher) Watch(ctx context.Context) error {
	return m.source.Subscribe(ctx, func(u Update) {
		if u.NewValue == nil {
			m.Invalidate()
			return
		}
		m.Set(u.NewValue)
	})
}

// IsBlacklisted reports whether hostOrURL is excluded.
// It never blocks: with no snapshot it starts a background load and answers per the fail mode.
func (m *Matcher) IsBlacklisted(hostOrURL string) bool {
	snap := m.current()
	if snap == nil {
		go func() {
			_ = m.Ensure(context.Background())
		}()
		return m.failMode == FailClosed
	}
	return snap.Match(hostOrURL)
}

func (m *Matcher) current() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
