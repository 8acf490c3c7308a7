package whitelist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"reaper-go/internal/reaper"
)

// Watcher reloads a FileWhitelist when its file changes on disk, so a second
// reaper process resurrecting a path is seen by a running shell.
type Watcher struct {
	list    *FileWhitelist
	watcher *fsnotify.Watcher
	logger  reaper.Logger
}

// NewWatcher starts watching the whitelist's directory. Writes replace the
// file by rename, so the directory is watched rather than the file itself.
func NewWatcher(list *FileWhitelist, logger reaper.Logger) (*Watcher, error) {
	if logger == nil {
		logger = reaper.NewNopLogger()
	}
	dir := filepath.Dir(list.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{list: list, watcher: fw, logger: logger}, nil
}

// Run handles events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("whitelist watcher error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.list.Path()) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	if err := w.list.Reload(); err != nil {
		w.logger.Warn("whitelist reload failed", "path", w.list.Path(), "error", err)
		return
	}
	w.logger.Debug("whitelist reloaded", "path", w.list.Path())
}

// Stop closes the underlying watcher, ending Run.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
