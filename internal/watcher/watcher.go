// Package watcher reports changed assistant logs after they go quiet.
//
// Assistants append to their logs continuously while a session is live, so
// every change is debounced per path: the handler runs once the path has seen
// no events for the debounce interval.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuum/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Handler is called with a path that changed and then stayed quiet.
type Handler func(ctx context.Context, path string) error

// Watcher watches files and directory trees.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// due is sent when a debounce timer fires. gen discards timers that were
// superseded by later events.
type due struct {
	path string
	gen  uint64
}

// New creates a watcher. A nil logger discards logs.
func New(logger *logging.Logger, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive, got %s", debounce)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return &Watcher{watcher: fw, debounce: debounce, logger: logger.Named("watcher")}, nil
}

// Add watches path. Directories are watched recursively.
func (w *Watcher) Add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	if !info.IsDir() {
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	}
	return w.addTree(path, nil)
}

// addTree watches root and every directory below it, calling onFile for each
// file found. Unreadable subdirectories are skipped.
func (w *Watcher) addTree(root string, onFile func(string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			return filepath.SkipDir
		}
		if !d.IsDir() {
			if onFile != nil && d.Type().IsRegular() {
				onFile(path)
			}
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			if path == root {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			w.logger.Warn(context.Background(), "cannot watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// Run delivers debounced changes to handler until ctx is cancelled or the
// watcher is closed. Handlers run one at a time on the calling goroutine; a
// handler error is logged and does not stop the loop.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	var (
		gen     uint64
		pending = make(map[string]uint64)
		timers  = make(map[string]*time.Timer)
		fired   = make(chan due)
		done    = make(chan struct{})
	)
	defer func() {
		close(done)
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(path string) {
		gen++
		pending[path] = gen
		d := due{path: path, gen: gen}
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			select {
			case fired <- d:
			case <-done:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// Files written before the directory was watched produced
					// no events of their own.
					if err := w.addTree(event.Name, schedule); err != nil {
						w.logger.Warn(ctx, "cannot watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
					continue
				}
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.logger.Trace(ctx, "change", zap.String("path", event.Name), zap.Stringer("op", event.Op))
				schedule(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watch error", zap.Error(err))

		case d := <-fired:
			if pending[d.path] != d.gen {
				continue
			}
			delete(pending, d.path)
			delete(timers, d.path)

			w.logger.Debug(ctx, "path settled", zap.String("path", d.path))
			if err := handler(ctx, d.path); err != nil {
				w.logger.Error(ctx, "handler failed", zap.String("path", d.path), zap.Error(err))
			}
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.watcher.Close()
	})
	return w.closeErr
}
