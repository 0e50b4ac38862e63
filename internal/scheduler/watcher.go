package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pipelib/internal/logfields"
)

// DefaultDebounce collapses bursts of editor writes into one reload.
const DefaultDebounce = 2 * time.Second

// ConfigWatcher calls Reload after the pipeline file changes.
type ConfigWatcher struct {
	path     string
	reload   func(ctx context.Context) error
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	pending  chan struct{}
	stopped  bool
}

// NewConfigWatcher watches path and calls reload after changes settle.
func NewConfigWatcher(path string, reload func(ctx context.Context) error) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return &ConfigWatcher{
		path:     abs,
		reload:   reload,
		watcher:  w,
		debounce: DefaultDebounce,
		stopChan: make(chan struct{}),
		pending:  make(chan struct{}, 1),
	}, nil
}

// SetDebounce changes the settle time. Call before Start.
func (cw *ConfigWatcher) SetDebounce(d time.Duration) { cw.debounce = d }

// Start watches the file's directory, which survives editors that replace
// the file on save.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.path)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	slog.Info("Watching pipeline file", logfields.Path(cw.path))
	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.stopped {
		return nil
	}
	cw.stopped = true
	close(cw.stopChan)
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	name := filepath.Base(cw.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				slog.Debug("Pipeline file changed", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				cw.trigger()
			case ev.Has(fsnotify.Remove):
				slog.Warn("Pipeline file removed", logfields.Path(ev.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) trigger() {
	select {
	case cw.pending <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-cw.stopChan:
			stop()
			return
		case <-cw.pending:
			stop()
			timer = time.AfterFunc(cw.debounce, func() {
				slog.Info("Reloading pipeline file", logfields.Path(cw.path))
				if err := cw.reload(ctx); err != nil {
					slog.Error("Failed to reload pipeline file", logfields.Error(err))
				}
			})
		}
	}
}
