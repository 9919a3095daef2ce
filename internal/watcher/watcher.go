// Package watcher turns filesystem events under a scan root into batched
// rescan requests.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/robert-at-pretension-io/verilog-assets/internal/config"
	"github.com/robert-at-pretension-io/verilog-assets/internal/observability"
)

// ChangeFunc receives the sorted set of source files touched since the last batch
type ChangeFunc func(ctx context.Context, paths []string)

// Watcher watches a directory tree for Verilog source changes
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	matcher   *config.FileMatcher
	debounce  time.Duration
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New creates a watcher over root. Batches are emitted after debounce of
// quiet and never more often than once per minInterval.
func New(root string, matcher *config.FileMatcher, debounce, minInterval time.Duration, logger *zap.Logger) (*Watcher, error) {
	if matcher == nil {
		return nil, errors.New("watcher: nil file matcher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Watcher{
		fsWatcher: fsw,
		root:      root,
		matcher:   matcher,
		debounce:  debounce,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}, nil
}

// Close releases the underlying watcher. Run closes it on return as well.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

// Run watches until ctx is done, calling onChange for each batch. onChange
// runs on the watch goroutine, so events arriving during a rescan are
// queued for the next batch.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.fsWatcher.Close()

	if err := w.watchRecursive(w.root); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			observability.WatcherEventsTotal.Inc()
			if !w.handle(event, pending) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timerC:
			timerC = nil
			if len(pending) == 0 {
				continue
			}
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			w.logger.Debug("change batch", zap.Int("files", len(paths)))
			onChange(ctx, paths)
		}
	}
}

// handle records a relevant event in pending and reports whether it did
func (w *Watcher) handle(event fsnotify.Event, pending map[string]struct{}) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.excluded(event.Name) {
				return false
			}
			if err := w.watchRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
				return false
			}
			return w.enqueueExisting(event.Name, pending)
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if !w.relevant(event.Name) {
		return false
	}
	pending[event.Name] = struct{}{}
	return true
}

func (w *Watcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) enqueueExisting(dir string, pending map[string]struct{}) bool {
	added := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !w.relevant(path) {
			return nil
		}
		pending[path] = struct{}{}
		added = true
		return nil
	})
	return added
}

func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	return w.matcher.Excluded(rel)
}

func (w *Watcher) relevant(path string) bool {
	return w.matcher.Included(path) && !w.excluded(path)
}
