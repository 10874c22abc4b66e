// Package watcher rebuilds the index when the source corpus changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/usecase/indexing"
)

// DefaultDebounce coalesces the burst of events one save produces.
const DefaultDebounce = 500 * time.Millisecond

// Reindexer rebuilds the index from the source.
type Reindexer interface {
	Reindex(ctx context.Context) (*indexing.Index, error)
}

// Watcher triggers a reindex after the source file settles.
type Watcher struct {
	path      string
	debounce  time.Duration
	reindexer Reindexer
	logger    *zap.Logger
}

// New creates a watcher for path. A non-positive debounce uses DefaultDebounce.
func New(path string, debounce time.Duration, reindexer Reindexer, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, debounce: debounce, reindexer: reindexer, logger: logger}
}

// Run blocks until ctx is cancelled. The parent directory is watched so that
// editors replacing the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.path, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.logger.Info("Watching source corpus", zap.String("path", abs), zap.Duration("debounce", w.debounce))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Source watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event, abs) {
				continue
			}
			w.logger.Debug("Source changed", zap.String("event", event.Op.String()), zap.String("name", event.Name))
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))

		case <-timer.C:
			w.reindex(ctx)
		}
	}
}

func (w *Watcher) reindex(ctx context.Context) {
	idx, err := w.reindexer.Reindex(ctx)
	if err != nil {
		w.logger.Error("Reindex after source change failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("Reindexed after source change",
		zap.String("collection", idx.Collection),
		zap.Int("chunks", idx.Chunks),
	)
}

// relevant keeps content changes of the watched file. Removal alone does not
// trigger a rebuild: the next create or write will.
func relevant(event fsnotify.Event, abs string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != abs {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
