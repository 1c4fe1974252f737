package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when a description file changes, debouncing editor write
// bursts into a single notification.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	changes  chan struct{}
}

// NewWatcher watches one description file. debounce zero means 300ms.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops
	// per-file watches.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	if debounce == 0 {
		debounce = 300 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		changes:  make(chan struct{}, 1),
	}, nil
}

// Changes returns the notification channel. At most one notification is
// pending at a time.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Start processes filesystem events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
	w.logger.Info("watching description file",
		slog.String("path", w.path),
		slog.Duration("debounce", w.debounce))
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("description change detected", slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				resetDebounce(timer, w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", slog.String("error", err.Error()))

		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

// resetDebounce restarts the debounce interval. A timer that already fired
// with its tick still unread must be drained first, or the stale tick
// delivers one notification early.
func resetDebounce(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
