package cache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process memory.
// go-cache's own expiry is disabled so reads never look at timestamps; the Sweeper owns expiry.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves an entry
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if val, found := s.cache.Get(key); found {
		return val.(*Entry), true, nil
	}
	return nil, false, nil
}

// Set stores an entry, replacing any previous one
func (s *MemoryStore) Set(ctx context.Context, entry *Entry) error {
	s.cache.Set(entry.Key, entry, gocache.NoExpiration)
	return nil
}

// Delete removes an entry
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Keys lists every stored key
func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear removes all entries
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.cache.Flush()
	return nil
}

// Close is a no-op for memory stores
func (s *MemoryStore) Close() error {
	return nil
}
