package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the pipeline tunables section when the config file
// changes on disk. Only the Pipeline section is swapped; server ports and
// service endpoints require a restart.
type Watcher struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current PipelineConfig
	onSwap  []func(PipelineConfig)
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, initial PipelineConfig, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:    path,
		logger:  logger,
		watcher: fw,
		current: initial,
	}, nil
}

// Pipeline returns the currently active pipeline tunables.
func (w *Watcher) Pipeline() PipelineConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnSwap registers a callback invoked after a successful reload.
func (w *Watcher) OnSwap(fn func(PipelineConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSwap = append(w.onSwap, fn)
}

// Start begins watching. It watches the directory rather than the file so
// that editor rename-and-replace writes are still observed.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("Config reload failed, keeping previous tunables",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg.Pipeline
	handlers := make([]func(PipelineConfig), len(w.onSwap))
	copy(handlers, w.onSwap)
	w.mu.Unlock()

	w.logger.Info("Pipeline tunables reloaded", zap.String("path", w.path))
	for _, fn := range handlers {
		fn(cfg.Pipeline)
	}
}
