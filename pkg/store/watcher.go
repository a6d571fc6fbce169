package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// ChangeSet lists the paths touched since the last flush
type ChangeSet struct {
	Changed []string
	Removed []string
}

// FileWatcher watches directory trees and reports debounced change sets
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	include  func(path string) bool
	onChange func(ChangeSet)
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	changed map[string]bool
	removed map[string]bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// WatcherConfig configures a FileWatcher
type WatcherConfig struct {
	Logger   zerolog.Logger
	Include  func(path string) bool
	OnChange func(ChangeSet)
	Debounce time.Duration
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(cfg WatcherConfig) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  watcher,
		logger:   cfg.Logger,
		include:  cfg.Include,
		onChange: cfg.OnChange,
		debounce: cfg.Debounce,
		changed:  make(map[string]bool),
		removed:  make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
	if fw.debounce <= 0 {
		fw.debounce = defaultDebounce
	}
	if fw.include == nil {
		fw.include = func(string) bool { return true }
	}
	if fw.onChange == nil {
		fw.onChange = func(ChangeSet) {}
	}

	go fw.run()

	return fw, nil
}

// Watch starts watching root and every directory below it
func (fw *FileWatcher) Watch(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.stopCh)
		fw.mu.Lock()
		if fw.timer != nil {
			fw.timer.Stop()
		}
		fw.mu.Unlock()
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) run() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error().Err(err).Msg("File watcher error")

		case <-fw.stopCh:
			return
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.Watch(event.Name); err != nil {
				fw.logger.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
			return
		}
	}

	if !fw.include(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		fw.record(event.Name, true)
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		fw.record(event.Name, false)
	default:
		return
	}

	fw.logger.Debug().
		Str("file", filepath.Base(event.Name)).
		Str("op", event.Op.String()).
		Msg("File change detected")
}

// record adds path to the pending change set and restarts the debounce timer
func (fw *FileWatcher) record(path string, removed bool) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if removed {
		delete(fw.changed, path)
		fw.removed[path] = true
	} else {
		delete(fw.removed, path)
		fw.changed[path] = true
	}

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fw.flush)
}

func (fw *FileWatcher) flush() {
	fw.mu.Lock()
	set := ChangeSet{
		Changed: sortedPaths(fw.changed),
		Removed: sortedPaths(fw.removed),
	}
	fw.changed = make(map[string]bool)
	fw.removed = make(map[string]bool)
	fw.mu.Unlock()

	if len(set.Changed) == 0 && len(set.Removed) == 0 {
		return
	}
	fw.logger.Debug().
		Int("changed", len(set.Changed)).
		Int("removed", len(set.Removed)).
		Msg("Flushing file changes")
	fw.onChange(set)
}

func sortedPaths(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Reindex applies a change set to the document index. Errors are logged
// per file and counted in the returned total.
func (s *Store) Reindex(ctx context.Context, set ChangeSet) (indexed, failed int) {
	for _, path := range set.Removed {
		if err := s.RemoveDocument(ctx, path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to drop document")
			failed++
		}
	}
	for _, path := range set.Changed {
		ok, err := s.IndexFile(ctx, path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to reindex document")
			failed++
			continue
		}
		if ok {
			indexed++
		}
	}
	return indexed, failed
}
