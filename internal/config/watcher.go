package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher re-resolves the config file whenever it is written and passes the
// result to onReload. It watches the parent directory so editors that
// replace the file by rename are still seen.
type Watcher struct {
	path     string
	getenv   func(string) string
	onReload func(Config, error)
	log      zerolog.Logger

	fsw     *fsnotify.Watcher
	mu      sync.RWMutex
	current Config
	reloads atomic.Uint32
	done    chan struct{}
	closeMu sync.Once

	// timerMu guards timer and closed; reload holds it while running so
	// Close waits for an in-progress reload.
	timerMu sync.Mutex
	timer   *time.Timer
	closed  bool
}

// NewWatcher starts watching path. initial is the config already in use.
func NewWatcher(path string, initial Config, getenv func(string) string, log zerolog.Logger, onReload func(Config, error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	w := &Watcher{
		path:     path,
		getenv:   getenv,
		onReload: onReload,
		log:      log,
		fsw:      fsw,
		current:  initial,
		done:     make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	defer close(w.done)
	target := filepath.Clean(w.path)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.schedule()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("config watcher error")
		}
	}
}

// schedule (re)starts the debounce timer.
func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.fire)
}

func (w *Watcher) fire() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.closed {
		return
	}
	w.reload()
}

func (w *Watcher) reload() {
	count := w.reloads.Add(1)
	w.log.Info().Str("path", w.path).Uint32("count", count).Msg("reloading config")

	cfg, err := Resolve(w.path, w.getenv)
	if err != nil {
		w.log.Error().Err(err).Msg("config reload failed")
		w.onReload(Config{}, err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	w.onReload(cfg, nil)
}

// Snapshot returns the last successfully loaded config.
func (w *Watcher) Snapshot() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ReloadCount returns how many reloads have been attempted.
func (w *Watcher) ReloadCount() uint32 { return w.reloads.Load() }

func (w *Watcher) Close() error {
	var err error
	w.closeMu.Do(func() {
		w.timerMu.Lock()
		w.closed = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()

		err = w.fsw.Close()
		<-w.done
	})
	return err
}
