// Package watch implements the optional continuous backup mode: a
// debounced fsnotify trigger that runs a backup cycle whenever the target
// directory changes, instead of requiring an external scheduler.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces a burst of filesystem events (e.g. a large copy
// or git checkout) into a single triggered cycle.
const debounceWindow = 2 * time.Second

// Watcher monitors root and its subdirectories for changes, invoking
// trigger at most once per debounceWindow of activity.
type Watcher struct {
	root   string
	logger *slog.Logger
}

// New creates a Watcher rooted at root.
func New(root string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{root: root, logger: logger}
}

// Run blocks until ctx is canceled, calling trigger each time the debounce
// window closes after one or more filesystem events under root. A trigger
// error is logged and does not stop the watch.
func (w *Watcher) Run(ctx context.Context, trigger func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, w.root); err != nil {
		return fmt.Errorf("watch: adding initial watches: %w", err)
	}

	w.logger.Info("watch: monitoring for changes", "root", w.root)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			w.logger.Debug("watch: filesystem event", "path", ev.Name, "op", ev.Op.String())

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := watcher.Add(ev.Name); addErr != nil {
						w.logger.Warn("watch: failed to add watch on new directory", "path", ev.Name, "error", addErr)
					}
				}
			}

			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("watch: filesystem watcher error", "error", watchErr)

		case <-timerCh:
			timer = nil
			timerCh = nil

			if err := trigger(ctx); err != nil {
				w.logger.Warn("watch: triggered backup cycle failed", "error", err)
			}
		}
	}
}

// addRecursive walks root and adds a watch on every directory.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.IsDir() {
			return nil
		}

		return watcher.Add(path)
	})
}
