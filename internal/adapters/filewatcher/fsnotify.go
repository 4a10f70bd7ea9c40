// Package filewatcher provides file system monitoring adapters.
// Clean Architecture: Adapter implementing ports.FileWatcher.
package filewatcher

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. It
// watches the parent directories of the given files and reports write
// and create events for exactly those files, so an edited CSV triggers
// a corpus reload.
type FSNotifyWatcher struct {
	watcher *fsnotify.Watcher
	logger  *logrus.Logger
}

// NewFSNotifyWatcher creates a new file watcher.
func NewFSNotifyWatcher(logger *logrus.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &FSNotifyWatcher{watcher: w, logger: logger}, nil
}

// Watch starts monitoring the given files and emits their paths on change.
func (w *FSNotifyWatcher) Watch(ctx context.Context, paths []string) (<-chan string, error) {
	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return nil, err
		}
	}

	changes := make(chan string, 16)

	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				abs, err := filepath.Abs(event.Name)
				if err != nil || !watched[abs] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case changes <- abs:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.WithError(err).Warn("file watcher error")
			}
		}
	}()

	return changes, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}
