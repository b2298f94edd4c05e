package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher publishes an Event whenever one file inside a directory is
// replaced, written or removed. The directory is watched rather than the
// file because atomic saves swap the file's inode.
type Watcher struct {
	dir      string
	file     string
	hub      EventHub
	logger   *slog.Logger
	debounce time.Duration
	ready    chan struct{}
}

// NewWatcher creates a Watcher for dir/file publishing to hub.
func NewWatcher(dir, file string, hub EventHub, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Watcher{
		dir:      dir,
		file:     file,
		hub:      hub,
		logger:   logger,
		debounce: defaultDebounce,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the directory watch is registered.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. Bursts of filesystem events within the
// debounce window collapse into one published Event.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	close(w.ready)
	w.logger.DebugContext(ctx, "watching vault file", "dir", w.dir, "file", w.file)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := ""

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			typ := classify(ev, w.file)
			if typ == "" {
				continue
			}
			pending = typ
			timer.Reset(w.debounce)
		case <-timer.C:
			if pending == "" {
				continue
			}
			event := Event{Type: pending, File: filepath.Join(w.dir, w.file), At: time.Now().UTC()}
			pending = ""
			if err := w.hub.Publish(ctx, event); err != nil {
				return nil
			}
			w.logger.DebugContext(ctx, "vault file event", "type", event.Type)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "fsnotify error", "error", err)
		}
	}
}

// classify maps a raw fsnotify event to an Event type, or "" to ignore it.
func classify(ev fsnotify.Event, file string) string {
	if filepath.Base(ev.Name) != file {
		return ""
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return EventVaultRemoved
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		return EventVaultChanged
	default:
		return ""
	}
}
