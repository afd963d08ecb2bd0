package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the config at path whenever it is written and hands the
// result to fn. The directory is watched so editors that replace the file
// are seen too. A file that fails to load is logged and skipped. Watch
// returns once the watcher is running; it stops when ctx is done.
func Watch(ctx context.Context, path string, logger *zap.Logger, fn func(*Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("config: %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				c, err := Load(abs)
				if err != nil {
					log.Warn("reload failed", zap.String("path", abs), zap.Error(err))
					continue
				}
				log.Info("config reloaded", zap.String("path", abs))
				fn(c)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("watcher error", zap.Error(err))
			}
		}
	}()
	log.Info("watching config", zap.String("path", abs))
	return nil
}
