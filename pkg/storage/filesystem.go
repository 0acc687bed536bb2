package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// FileSystemStorage serves records loaded from a directory of fixture files.
// Every *.yaml, *.yml and *.json file in the root directory is a Fixture.
type FileSystemStorage struct {
	*MemoryStorage

	rootDir string
	reloads atomic.Int64

	// OnReload, when set, is called after every reload attempt
	OnReload func(records int, err error)
}

// NewFileSystemStorage creates a filesystem-backed store and loads it
func NewFileSystemStorage(rootDir string) (*FileSystemStorage, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	s := &FileSystemStorage{
		MemoryStorage: NewMemoryStorage(),
		rootDir:       rootDir,
	}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rereads every fixture file. The previous record set stays in place
// if any file fails to load.
func (s *FileSystemStorage) Reload(ctx context.Context) error {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return fmt.Errorf("failed to read root directory: %w", err)
	}

	next := NewMemoryStorage()
	for _, entry := range entries {
		if entry.IsDir() || !isFixtureFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.rootDir, entry.Name())
		if err := LoadFixtureFile(ctx, next, path); err != nil {
			return fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
	}

	next.mu.RLock()
	records := next.records
	next.mu.RUnlock()

	s.MemoryStorage.Replace(records)
	s.reloads.Add(1)
	return nil
}

// Reloads returns how many successful reloads have happened
func (s *FileSystemStorage) Reloads() int64 {
	return s.reloads.Load()
}

// Watch reloads the store whenever a fixture file changes. It blocks until
// ctx is cancelled.
func (s *FileSystemStorage) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.rootDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.rootDir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isFixtureFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			err := s.Reload(ctx)
			if s.OnReload != nil {
				s.OnReload(s.Len(), err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if s.OnReload != nil {
				s.OnReload(s.Len(), err)
			}
		}
	}
}

func isFixtureFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
