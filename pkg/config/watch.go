package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/dirserve/internal/logger"
)

// Watch reloads the configuration file at path whenever it changes and
// passes the new Config to onChange. A file that fails to load or validate
// is logged and skipped; the previous configuration stays in effect.
//
// The parent directory is watched rather than the file itself so editors
// that save by rename keep triggering reloads. Watch returns once the
// watcher is installed; it stops when ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cfg, err := Load(abs)
				if err != nil {
					logger.Warn("Ignoring configuration change", "path", abs, logger.Err(err))
					continue
				}
				logger.Debug("Configuration reloaded", "path", abs)
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watcher error", logger.Err(err))
			}
		}
	}()

	return nil
}
