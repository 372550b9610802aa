// Package watch follows a DecSync tree for changes made by other writers,
// typically landing through an external file synchronizer. It combines
// fsnotify events with a coarse poll fallback, since some synchronizers
// replace files in ways that race with inotify registration on fresh
// directories.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/klauern/decsync/internal/logging"
)

// Options configures a watch loop.
type Options struct {
	// Debounce is how long to wait after the last event before firing.
	// Defaults to 200ms.
	Debounce time.Duration
	// PollInterval fires the callback even without events, as a fallback.
	// Defaults to 30s.
	PollInterval time.Duration
}

// Watcher follows one directory tree recursively.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	watched map[string]bool
}

// New creates a watcher rooted at root, registering every existing
// subdirectory. The root must exist.
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, fsw: fsw, watched: make(map[string]bool)}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// addRecursive registers dir and every directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.watched[path] {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		w.watched[path] = true
		return nil
	})
}

// Run blocks, invoking onChange after every debounced burst of filesystem
// events and at every poll interval, until the context is cancelled.
// Callback errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, opts Options, onChange func() error) error {
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}

	poll := time.NewTicker(opts.PollInterval)
	defer poll.Stop()

	debounce := time.NewTimer(opts.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	fire := func() {
		if err := onChange(); err != nil {
			logging.Warn("watch callback failed", logging.Err(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			// New directories must be registered before events inside them
			// can be seen.
			if event.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						logging.Warn("could not watch new directory",
							logging.Path(event.Name),
							logging.Err(err),
						)
					}
				}
			}
			debounce.Reset(opts.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", logging.Err(err))

		case <-debounce.C:
			fire()

		case <-poll.C:
			fire()
		}
	}
}
