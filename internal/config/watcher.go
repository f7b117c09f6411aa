package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch reloads the config file whenever it changes and hands the fresh,
// validated config to onChange. Invalid rewrites are logged and skipped,
// keeping the previous configuration in effect. The returned stop function
// closes the watcher.
func Watch(path string, onChange func(*Config)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file itself: editors and
	// configuration tools often replace the file, which drops a watch
	// registered directly on it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				cfg, err := Load(path)
				if err != nil {
					logrus.Warnf("Failed to reload config from %s: %v", path, err)
					continue
				}
				if err := cfg.Validate(); err != nil {
					logrus.Warnf("Ignoring invalid config rewrite of %s: %v", path, err)
					continue
				}

				logrus.Infof("Config reloaded from %s", path)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.Errorf("Config watcher error: %v", err)
			}
		}
	}()

	return watcher.Close, nil
}
