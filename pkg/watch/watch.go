// Package watch reruns a comparison whenever benchmark or converted files
// change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/fsnotify.v1"
)

// DefaultDebounce is the quiet period after the last event before a rerun.
const DefaultDebounce = 500 * time.Millisecond

// Handler is called once per burst of relevant changes. An error is logged
// and watching continues.
type Handler func(ctx context.Context, changed []string) error

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before the handler runs. Zero means
	// DefaultDebounce.
	Debounce time.Duration

	// Extensions are the file extensions that trigger a rerun. Empty means
	// ".xml" and ".log".
	Extensions []string

	// Logger receives watch events and handler errors. Nil discards them.
	Logger *slog.Logger
}

// Watcher watches a set of directories.
type Watcher struct {
	dirs    []string
	handler Handler
	options Options
	logger  *slog.Logger
}

// New creates a Watcher for dirs. Nothing is watched until Run.
func New(dirs []string, handler Handler, options Options) *Watcher {
	if options.Debounce <= 0 {
		options.Debounce = DefaultDebounce
	}
	if len(options.Extensions) == 0 {
		options.Extensions = []string{".xml", ".log"}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{dirs: dirs, handler: handler, options: options, logger: logger}
}

// Relevant reports whether an event should trigger a rerun. Chmod-only
// events and files with other extensions are ignored.
func (watcher *Watcher) Relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, want := range watcher.options.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// Run watches until ctx is cancelled. Handler calls never overlap; changes
// arriving while the handler runs are collected for the next call.
func (watcher *Watcher) Run(ctx context.Context) error {
	if watcher.handler == nil {
		return errors.New("no handler configured for watching")
	}
	if len(watcher.dirs) == 0 {
		return errors.New("no directory configured for watching")
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer notifier.Close()

	for _, dir := range watcher.dirs {
		if err := notifier.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
		watcher.logger.Info("watching directory", "dir", dir)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]bool)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if !watcher.Relevant(event) {
				continue
			}
			watcher.logger.Debug("file changed", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(watcher.options.Debounce)
			} else {
				timer.Reset(watcher.options.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := slices.Sorted(maps.Keys(pending))
			pending = make(map[string]bool)
			if err := watcher.handler(ctx, changed); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				watcher.logger.Warn("rerun failed", "error", err)
			}

		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			watcher.logger.Warn("watch error", "error", err)
		}
	}
}
