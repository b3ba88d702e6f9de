package blacklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// StaticSource serves a blacklist held in memory. Publish notifies subscribers.
type StaticSource struct {
	mu          sync.Mutex
	value       *Blacklist
	subscribers []func(Update)
}

// NewStaticSource creates a source holding b
func NewStaticSource(b *Blacklist) *StaticSource {
	return &StaticSource{value: b}
}

// Load returns the held blacklist
func (s *StaticSource) Load(ctx context.Context) (*Blacklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return &Blacklist{}, nil
	}
	return s.value, nil
}

// Subscribe registers fn; it stays registered for the life of the source
func (s *StaticSource) Subscribe(ctx context.Context, fn func(Update)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
	return nil
}

// Publish replaces the held blacklist and notifies subscribers
func (s *StaticSource) Publish(b *Blacklist) {
	s.mu.Lock()
	s.value = b
	subs := append([]func(Update){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(Update{NewValue: b})
	}
}

// FileSource reads a YAML or JSON blacklist file and watches it for changes
type FileSource struct {
	path string
}

// NewFileSource creates a source for the file at path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and decodes the file. A missing file is an empty blacklist.
func (s *FileSource) Load(ctx context.Context) (*Blacklist, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Blacklist{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blacklist: %w", err)
	}

	var b Blacklist
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		// JSON object keys are strings; encoding/json converts them to the int suffix lengths
		err = json.Unmarshal(data, &b)
	} else {
		err = yaml.Unmarshal(data, &b)
	}
	if err != nil {
		return nil, fmt.Errorf("parse blacklist %s: %w", s.path, err)
	}
	return &b, nil
}

// Subscribe watches the file's directory and delivers the new value on every write
func (s *FileSource) Subscribe(ctx context.Context, fn func(Update)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors replace files on save, so the directory is watched instead of the file
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	target := filepath.Clean(s.path)
	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				b, err := s.Load(ctx)
				if err != nil {
					log.Warn().Err(err).Str("path", s.path).Msg("Blacklist reload failed; keeping previous snapshot")
					continue
				}
				log.Info().Str("path", s.path).Msg("Blacklist file changed")
				fn(Update{NewValue: b})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Blacklist watcher error")
			}
		}
	}()

	return nil
}
