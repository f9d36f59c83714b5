package archive

import (
	"github.com/fsnotify/fsnotify"

	"neoview/internal/logging"
)

// Watcher invalidates the manager's caches when archives are mutated
// outside this process (e.g. a file manager rewrites a zip). Without
// it, cached listings and handles stay stale until their TTL expires.
type Watcher struct {
	manager *Manager
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching the given directories for changes to
// archive files. Directories that cannot be watched are skipped with a
// warning.
func NewWatcher(manager *Manager, dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			logging.Warn("archive: cannot watch %s: %v", dir, err)
		}
	}

	w := &Watcher{manager: manager, watcher: fw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
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
			logging.Error("archive: watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if DetectFormat(event.Name) == FormatUnsupported {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
		return
	}
	logging.Debug("archive: invalidating %s after %s", event.Name, event.Op)
	w.manager.Invalidate(event.Name)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
