package config

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/stub"
)

// DefaultDebounce collapses the burst of events editors emit on save.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reloads stub mappings when files below the mappings directory change.
type Watcher struct {
	rootDir  string
	onReload func([]*stub.Stub)
	log      *slog.Logger
	debounce time.Duration

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a Watcher that calls onReload with the full stub set
// after every change. Reload failures are logged and the callback is skipped.
func NewWatcher(rootDir string, onReload func([]*stub.Stub), log *slog.Logger) *Watcher {
	return &Watcher{
		rootDir:  rootDir,
		onReload: onReload,
		log:      logging.Component(log, "watcher"),
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins watching. fsnotify is not recursive, so every existing
// subdirectory is added, and new ones are added as they appear.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := MappingsPath(w.rootDir)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return err
	}

	// Set only once the loop runs; Stop waits on done whenever watcher is set.
	w.watcher = watcher
	w.log.Info("watching mappings", "path", dir)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for its goroutine, including a reload
// in progress. No callback runs after Stop returns. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			_ = w.watcher.Close()
			<-w.done
		}
	})
}

// Reload loads the mappings and hands them to the callback.
func (w *Watcher) Reload() bool {
	stubs, err := LoadMappings(w.rootDir)
	if err != nil {
		w.log.Error("mapping reload failed, keeping current stubs", "error", err)
		return false
	}
	w.log.Info("mappings reloaded", "stubs", len(stubs))
	w.onReload(stubs)
	return true
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				w.addIfDir(event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.Reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("mapping watcher error", "error", err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) addIfDir(path string) {
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			if addErr := w.watcher.Add(p); addErr != nil {
				w.log.Warn("failed to watch directory", "path", p, "error", addErr)
			}
		}
		return nil
	})
}
