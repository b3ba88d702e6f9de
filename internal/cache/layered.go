package cache

import (
	"context"
	"errors"
)

// LayeredStore keeps a memory layer in front of a persistent store
type LayeredStore struct {
	memory Store
	disk   Store
}

// NewLayeredStore creates a layered store
func NewLayeredStore(memory Store, persistent Store) *LayeredStore {
	return &LayeredStore{
		memory: memory,
		disk:   persistent,
	}
}

// Get checks memory first, then the persistent layer
func (s *LayeredStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if entry, found, _ := s.memory.Get(ctx, key); found {
		return entry, true, nil
	}

	entry, found, err := s.disk.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	// Promote to memory, keeping the original write time
	_ = s.memory.Set(ctx, entry)
	return entry, true, nil
}

// Set stores the entry in both layers
func (s *LayeredStore) Set(ctx context.Context, entry *Entry) error {
	if err := s.memory.Set(ctx, entry); err != nil {
		return err
	}
	return s.disk.Set(ctx, entry)
}

// Delete removes the entry from both layers
func (s *LayeredStore) Delete(ctx context.Context, key string) error {
	return errors.Join(s.memory.Delete(ctx, key), s.disk.Delete(ctx, key))
}

// Keys returns the union of both layers' keys
func (s *LayeredStore) Keys(ctx context.Context) ([]string, error) {
	memKeys, err := s.memory.Keys(ctx)
	if err != nil {
		return nil, err
	}
	diskKeys, err := s.disk.Keys(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(memKeys)+len(diskKeys))
	keys := make([]string, 0, len(memKeys)+len(diskKeys))
	for _, k := range append(memKeys, diskKeys...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear removes all values from both layers
func (s *LayeredStore) Clear(ctx context.Context) error {
	return errors.Join(s.memory.Clear(ctx), s.disk.Clear(ctx))
}

// Close closes both layers
func (s *LayeredStore) Close() error {
	return errors.Join(s.memory.Close(), s.disk.Close())
}
