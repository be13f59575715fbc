package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceInterval is how long the watcher waits after the last write
// before reloading.
const DebounceInterval = 250 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher starts watching the directory holding path. Editors often
// replace files by rename, so the directory is watched rather than the file.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	path = filepath.Clean(path)
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{path: path, fs: fw, debounce: DebounceInterval, logger: logger}, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run delivers reloaded configs to onChange until ctx is cancelled. Bursts
// of writes are batched into one reload. Unparsable files are logged and
// skipped. Run closes the watcher when it returns.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) error {
	defer w.fs.Close()

	batchTimer := time.NewTimer(w.debounce)
	batchTimer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = true
			batchTimer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watch error", "error", err)

		case <-batchTimer.C:
			if !pending {
				continue
			}
			pending = false

			cfg, err := LoadFrom(w.path)
			if err != nil {
				w.logger.Warn("ignoring config change", "path", w.path, "error", err)
				continue
			}
			w.logger.Debug("config reloaded", "path", w.path)
			onChange(cfg)
		}
	}
}

// Watch monitors the config at path and calls onChange with every reloaded
// version. Blocks until the context is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := NewWatcher(path, nil)
	if err != nil {
		return err
	}
	return w.Run(ctx, onChange)
}
