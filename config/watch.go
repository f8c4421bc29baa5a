package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jonwraymond/sentimentd/observe"
)

// Watch reloads the file at path whenever it is written or replaced and
// passes each valid result to onChange. A reload that fails is logged and
// the previous configuration stays in effect. Watch blocks until ctx is
// done.
//
// The parent directory is watched so editors that save by rename are
// picked up.
func Watch(ctx context.Context, path string, onChange func(*Config), logger observe.Logger) error {
	if logger == nil {
		logger = observe.NopLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	logger.Info(ctx, "watching config for changes", observe.F("path", abs))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadContext(ctx, abs)
			if err != nil {
				logger.Error(ctx, "config reload failed, keeping previous config",
					observe.F("path", abs), observe.Err(err))
				continue
			}
			logger.Info(ctx, "config reloaded", observe.F("path", abs))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(ctx, "config watcher error", observe.Err(err))
		}
	}
}
