package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore persists each entry as a JSON file named by the hashed key
type DiskStore struct {
	dir string
}

// NewDiskStore creates a disk store rooted at dir
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Get retrieves an entry from disk
func (s *DiskStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	entry, err := s.read(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Set writes an entry atomically (temp file + rename)
func (s *DiskStore) Set(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Each writer gets its own temp file; the last rename wins
	tmp, err := os.CreateTemp(s.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(entry.Key)); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}

	return nil
}

// Delete removes an entry; deleting a missing entry is not an error
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Keys reads every entry file and returns the original keys
func (s *DiskStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".cache") {
			return nil
		}
		entry, err := s.read(path)
		if err != nil {
			return nil // skip unreadable
		}
		keys = append(keys, entry.Key)
		return nil
	})
	return keys, err
}

// Clear removes all cached files
func (s *DiskStore) Clear(ctx context.Context) error {
	return os.RemoveAll(s.dir)
}

// Close is a no-op for disk stores
func (s *DiskStore) Close() error {
	return nil
}

func (s *DiskStore) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache file: %w", err)
	}
	return &entry, nil
}

// path generates the file path for a cache key
func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(CacheKey(key), ":", "_")+".cache")
}
