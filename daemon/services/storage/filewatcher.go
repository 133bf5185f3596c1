package storage

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// FileWatcher watches the NVS backing file for external changes (e.g. a
// maintenance script editing WiFi credentials directly) and debounces
// rapid successive writes into a single reload callback.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	debounce time.Duration
	timers   map[string]*time.Timer
}

// NewFileWatcher creates a FileWatcher with the given debounce duration.
func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		watcher:  w,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// WatchFile adds path to the watch list by watching its parent directory,
// since fsnotify watches directories rather than individual files.
func (fw *FileWatcher) WatchFile(path string) error {
	return fw.watcher.Add(filepath.Dir(path))
}

// Run blocks until ctx is cancelled, invoking onChange (debounced) whenever
// one of watchedFiles is written or created.
func (fw *FileWatcher) Run(ctx context.Context, watchedFiles []string, onChange func()) {
	fileSet := make(map[string]struct{}, len(watchedFiles))
	for _, f := range watchedFiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			fileSet[f] = struct{}{}
		} else {
			fileSet[abs] = struct{}{}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				abs = event.Name
			}
			if _, watched := fileSet[abs]; !watched {
				continue
			}
			logger.Debug("storage: NVS file change detected on %s (op=%s)", event.Name, event.Op)
			fw.debouncedCallback(abs, onChange)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("storage: file watcher error: %v", err)
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) debouncedCallback(key string, cb func()) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if t, exists := fw.timers[key]; exists {
		t.Stop()
	}
	fw.timers[key] = time.AfterFunc(fw.debounce, cb)
}
