// Package fswatch reports files that appear or change in watched
// directories.
package fswatch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers the paths of written or created files to registered
// callbacks.
type Watcher struct {
	watcher   *fsnotify.Watcher
	callbacks []func(string)
	filter    func(string) bool
	dirs      map[string]bool
	files     map[string]bool
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithFilter drops events for paths the filter rejects.
func WithFilter(filter func(path string) bool) Option {
	return func(w *Watcher) {
		w.filter = filter
	}
}

// WithExtensions accepts only paths ending in one of exts, e.g. ".yaml".
func WithExtensions(exts ...string) Option {
	return WithFilter(func(path string) bool {
		ext := filepath.Ext(path)
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	})
}

// New creates a watcher.
func New(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		dirs:    make(map[string]bool),
		files:   make(map[string]bool),
		done:    make(chan struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds a directory or a single file. A file is watched through its
// parent directory, which also catches editors that save by rename, and
// only events for that file are passed on.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)
	dir := path
	info, err := os.Stat(path)
	isFile := err == nil && !info.IsDir()
	if isFile {
		dir = filepath.Dir(path)
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}

	w.mu.Lock()
	if isFile {
		w.files[path] = true
	} else {
		w.dirs[dir] = true
	}
	w.mu.Unlock()
	w.logger.Debug("watching", "path", path, "file", isFile)
	return nil
}

// accepts reports whether an event for path is in scope and passes the filter.
func (w *Watcher) accepts(path string) bool {
	path = filepath.Clean(path)
	w.mu.RLock()
	inScope := w.dirs[filepath.Dir(path)] || w.files[path]
	w.mu.RUnlock()
	return inScope && (w.filter == nil || w.filter(path))
}

// OnChange registers a callback that receives the changed path.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Run delivers events until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("watcher started")
	defer w.logger.Info("watcher stopped")

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.accepts(event.Name) {
				continue
			}
			w.logger.Debug("file changed", "file", event.Name, "op", event.Op.String())
			w.notify(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
	}
}

// Stop stops Run and releases the underlying watcher. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) notify(path string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(path)
	}
}
