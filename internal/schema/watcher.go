// internal/schema/watcher.go
package schema

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ReloadWatcher reloads the registry whenever its document changes on disk.
// The parent directory is watched because editors and config tooling replace
// files by rename.
type ReloadWatcher struct {
	registry  *Registry
	logger    Logger
	onFailure func(error)
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

// NewReloadWatcher creates a watcher for the registry's document. onFailure,
// when non-nil, is invoked after a failed reload (the previous schema stays
// active either way).
func NewReloadWatcher(registry *Registry, logger Logger, onFailure func(error)) *ReloadWatcher {
	return &ReloadWatcher{
		registry:  registry,
		logger:    logger,
		onFailure: onFailure,
		done:      make(chan struct{}),
	}
}

// Start begins watching. Call Stop() to clean up.
func (rw *ReloadWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(rw.registry.Path())); err != nil {
		_ = w.Close()
		return err
	}
	rw.watcher = w

	go rw.loop()
	rw.logger.Info("Watching intent schema for changes", map[string]interface{}{
		"path": rw.registry.Path(),
	})
	return nil
}

// Stop shuts down the watcher and waits for the loop to exit.
func (rw *ReloadWatcher) Stop() {
	if rw.watcher != nil {
		_ = rw.watcher.Close()
	}
	<-rw.done
}

func (rw *ReloadWatcher) loop() {
	defer close(rw.done)

	target := filepath.Clean(rw.registry.Path())
	for {
		select {
		case evt, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := rw.registry.Reload(); err != nil && rw.onFailure != nil {
				rw.onFailure(err)
			}
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Warn("Schema watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
