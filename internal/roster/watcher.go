package roster

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the roster file for changes using fsnotify with a
// stat-polling fallback. Each change delivers one signal on Events; the
// channel is buffered to 1 so rapid successive writes coalesce. The daemon
// wires the signal to [CSVStore.Invalidate].
type Watcher struct {
	path   string
	events chan struct{}
	done   chan struct{}

	fsw     *fsnotify.Watcher // nil when polling
	once    sync.Once
	polling atomic.Bool

	pollInterval time.Duration
}

// NewWatcher watches path for writes. fsnotify failures at setup or at
// runtime degrade to polling rather than erroring out; roster reloads are a
// convenience, not a correctness requirement.
func NewWatcher(path string) (*Watcher, error) {
	w := &Watcher{
		path:         path,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 2 * time.Second,
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		if err = fsw.Add(path); err != nil {
			fsw.Close()
		}
	}
	if err != nil {
		slog.Info("fsnotify unavailable for roster, polling instead", "path", path, "error", err)
		w.fallBackToPolling()
		return w, nil
	}

	w.fsw = fsw
	go w.watch()
	return w, nil
}

// Events returns the change signal channel.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Polling reports whether the watcher degraded to stat polling.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if cerr := w.fsw.Close(); cerr != nil {
				err = fmt.Errorf("close fsnotify watcher: %w", cerr)
			}
		}
	})
	return err
}

func (w *Watcher) fallBackToPolling() {
	w.polling.Store(true)
	go w.poll()
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error on roster, switching to polling", "error", err)
			w.fsw.Close()
			w.fsw = nil
			w.fallBackToPolling()
			return
		}
	}
}

func (w *Watcher) poll() {
	var lastMod time.Time
	if info, err := os.Stat(w.path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				w.notify()
			}
		}
	}
}

// notify drops the signal when one is already pending.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
