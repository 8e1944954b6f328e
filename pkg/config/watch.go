package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/camview/camview/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration file at path on every change and passes
// the new values to fn. It blocks until ctx is done.
// Invalid files are logged and skipped.
func Watch(ctx context.Context, path string, log *logger.Logger, fn func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// editors replace files, so the directory is watched
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	if err = watcher.Add(dir); err != nil {
		return fmt.Errorf("config watch %v: %w", dir, err)
	}
	log.Debug().Msgf("Watching %v", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			conf, err := NewConfig(filepath.Dir(path))
			if err != nil {
				log.Warn().Err(err).Msg("Config reload has failed")
				continue
			}
			log.Info().Msg("Config has been reloaded")
			fn(conf)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Config watcher")
		}
	}
}
