// Package watch triggers a recompile when scanner recordings change on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the directory must stay quiet before a change
// batch is delivered.
const DefaultDebounce = 2 * time.Second

// ChangeFunc receives the sorted paths that changed since the last call.
type ChangeFunc func(ctx context.Context, paths []string) error

// Watcher watches one recordings directory.
type Watcher struct {
	lastEvent time.Time
	fsw       *fsnotify.Watcher
	onChange  ChangeFunc
	pending   map[string]struct{}
	dir       string
	pattern   string
	debounce  time.Duration
	mu        sync.Mutex
}

// New creates a watcher for files in dir whose base name matches pattern.
func New(dir, pattern string, debounce time.Duration, onChange ChangeFunc) (*Watcher, error) {
	if pattern == "" {
		pattern = "*.csv"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		fsw:      fsw,
		onChange: onChange,
		pending:  make(map[string]struct{}),
		dir:      dir,
		pattern:  pattern,
		debounce: debounce,
	}, nil
}

// Run watches until ctx is done. The directory is created if missing.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	if err := os.MkdirAll(w.dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.dir, err)
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	slog.Info("Watching recordings", "dir", w.dir, "pattern", w.pattern, "debounce", w.debounce)

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	ok, err := doublestar.Match(w.pattern, filepath.Base(event.Name))
	if err != nil || !ok {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.lastEvent = time.Now()
	w.mu.Unlock()

	slog.Debug("Recording changed", "path", event.Name, "op", event.Op.String())
}

// flush delivers the pending batch once no event has arrived for the
// debounce period.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	if len(w.pending) == 0 || now.Sub(w.lastEvent) < w.debounce {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	if err := w.onChange(ctx, paths); err != nil {
		slog.Warn("Recompile after change failed", "files", len(paths), "error", err)
	}
}
