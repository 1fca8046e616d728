// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ocel-tools/ocelbridge/internal/log"
)

// WatchLogLevel watches the config file and applies log level changes at
// runtime. Only the level is hot-reloaded; every other setting requires a
// restart because sessions depend on it.
func WatchLogLevel(ctx context.Context, path string, apply func(level string)) error {
	if path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which would
	// otherwise drop the watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	logger := log.WithComponent("config")
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := NewLoader(path, "").Load()
				if err != nil {
					logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("ignoring config change")
					continue
				}
				logger.Info().Str("event", "config.reloaded").Str("level", cfg.LogLevel).Msg("applying log level")
				apply(cfg.LogLevel)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Str("event", "config.watch_error").Msg("config watcher error")
			}
		}
	}()
	return nil
}
