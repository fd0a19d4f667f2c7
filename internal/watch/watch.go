// Package watch reports external modifications to an open file so the
// caller can prompt for a reload. Edits made through Document.Save are the
// caller's own writes; suppress notifications around them with Suppress.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses the bursts of Write events most editors produce
// when replacing a file.
const debounce = 200 * time.Millisecond

// Watcher reports when a file is modified or removed by another process.
type Watcher struct {
	path       string
	fsw        *fsnotify.Watcher
	events     chan Event
	suppressed atomic.Bool
	logger     *slog.Logger
}

// Event describes one observed change.
type Event struct {
	// Removed is true when the file was deleted or renamed away; the
	// mmap'd contents stay readable but saves will recreate the file.
	Removed bool
}

// New starts watching path. Run must be called to pump events.
func New(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory, not the file: editors that replace via
	// rename would otherwise detach the watch on the first save.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:   abs,
		fsw:    fsw,
		events: make(chan Event, 1),
		logger: logger,
	}, nil
}

// Events delivers at most one pending notification; coalesced, never blocking
// the pump.
func (w *Watcher) Events() <-chan Event { return w.events }

// Suppress toggles event delivery. Callers set it around their own saves.
func (w *Watcher) Suppress(on bool) { w.suppressed.Store(on) }

// Run pumps fsnotify events until ctx is cancelled or the watcher closed.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var pending Event
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-fire:
			fire = nil
			if !w.suppressed.Load() {
				select {
				case w.events <- pending:
				default:
				}
			}
			pending = Event{}
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				pending.Removed = true
			case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Chmod):
				// Create covers the rename-into-place half of an
				// atomic replace; the file is back, so it is a plain
				// modification again.
				pending.Removed = false
			default:
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Close stops the watcher. Run returns shortly after.
func (w *Watcher) Close() error { return w.fsw.Close() }
