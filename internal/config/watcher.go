package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RulesWatcher re-reads rule files when they change on disk. Replace
// semantics on the store make a re-read idempotent, so reload is just
// running the loader again.
type RulesWatcher struct {
	logger   *slog.Logger
	adder    RuleAdder
	files    []string
	debounce time.Duration
	onReload func(path string, count int, err error)
	watcher  *fsnotify.Watcher
	running  atomic.Bool
}

type WatcherConfig struct {
	Logger   *slog.Logger
	Adder    RuleAdder
	Files    []string
	Debounce time.Duration

	// OnReload is called after every reload attempt; used by tests and
	// for publishing rules_loaded events.
	OnReload func(path string, count int, err error)
}

func NewRulesWatcher(cfg WatcherConfig) (*RulesWatcher, error) {
	if cfg.Adder == nil {
		return nil, fmt.Errorf("rule adder is required")
	}
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("at least one rules file is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &RulesWatcher{
		logger:   logger,
		adder:    cfg.Adder,
		files:    cfg.Files,
		debounce: debounce,
		onReload: cfg.OnReload,
	}, nil
}

// Start begins watching until the context is cancelled. The parent
// directories are watched, not the files themselves, so editors that
// rename-over the file are still seen.
func (w *RulesWatcher) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return fmt.Errorf("watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.running.Store(false)
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.watcher = watcher

	dirs := make(map[string]struct{})
	for _, f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			w.logger.Debug("cannot watch rules dir", "dir", dir, "error", err)
		}
	}

	go w.processEvents(ctx)
	return nil
}

func (w *RulesWatcher) watched(path string) bool {
	for _, f := range w.files {
		if filepath.Clean(path) == filepath.Clean(f) {
			return true
		}
	}
	return false
}

func (w *RulesWatcher) processEvents(ctx context.Context) {
	defer w.watcher.Close()
	defer w.running.Store(false)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 && w.watched(event.Name) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("rules watcher error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, path)
				w.reload(path)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (w *RulesWatcher) reload(path string) {
	count, err := LoadRulesFile(w.logger, w.adder, path)
	if err != nil {
		w.logger.Error("rules reload failed", "file", path, "loaded", count, "error", err)
	} else {
		w.logger.Info("rules reloaded", "file", path, "count", count)
	}
	if w.onReload != nil {
		w.onReload(path, count, err)
	}
}
