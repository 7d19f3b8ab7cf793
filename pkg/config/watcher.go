package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/workerservice/pkg/log"
)

// DefaultDebounceDelay is how long the Watcher waits after the last file
// event before reloading.
const DefaultDebounceDelay = 100 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the reload debounce delay.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDelay = d
		}
	}
}

// Watcher reloads configuration when a settings file changes and publishes
// the new Snapshot through Current. A failed reload keeps the previous
// snapshot.
type Watcher struct {
	loader        *Loader
	logger        log.Logger
	debounceDelay time.Duration

	current atomic.Pointer[Snapshot]
	reloads atomic.Int64

	mu          sync.Mutex
	debounce    *time.Timer
	subscribers []func(*Snapshot)
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewWatcher creates a watcher publishing initial until the first reload.
func NewWatcher(loader *Loader, initial *Snapshot, logger log.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	w := &Watcher{
		loader:        loader,
		logger:        logger.With(log.String("component", "config-watcher")),
		debounceDelay: DefaultDebounceDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.current.Store(initial)
	return w
}

// Current returns the latest snapshot.
func (w *Watcher) Current() *Snapshot {
	return w.current.Load()
}

// Reloads returns how many reloads have been published.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Subscribe registers fn to be called with every published snapshot.
func (w *Watcher) Subscribe(fn func(*Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Start begins watching the configuration directory. A missing directory
// disables watching without failing.
func (w *Watcher) Start(ctx context.Context) error {
	dir := w.loader.ResolvedDir()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		w.logger.Warn("config watcher disabled", log.String("dir", dir), log.Err(err))
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watchLoop(watchCtx, fw)

	w.logger.Info("config watcher started", log.String("dir", dir))
	return nil
}

// Stop ends the watch loop and cancels any pending reload.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload loads the configuration now and publishes it on success.
func (w *Watcher) Reload() error {
	snap, err := w.loader.Load()
	if err != nil {
		w.logger.Error("config reload failed, keeping previous configuration", log.Err(err))
		return err
	}

	w.current.Store(snap)
	w.reloads.Add(1)
	w.logger.Info("configuration reloaded", log.Int("files", len(snap.Files())))

	w.mu.Lock()
	subs := append(([]func(*Snapshot))(nil), w.subscribers...)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()

	watched := make(map[string]bool)
	for _, name := range w.loader.FileNames() {
		watched[name] = true
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !watched[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.debounceReload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) debounceReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}

	w.debounce = time.AfterFunc(w.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		_ = w.Reload()
	})
}

var _ Source = (*Watcher)(nil)
