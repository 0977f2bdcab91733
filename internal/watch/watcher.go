// Package watch monitors the incoming lightcurve directory and registers
// new files as sonification content in the mirror. Rendering and upload
// happen elsewhere; this only makes the content known locally.
package watch

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"voidorchestra/internal/storage"
)

// Watcher monitors one directory for new lightcurve files.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *storage.Store
	log     *slog.Logger
	dir     string
	done    chan struct{}
}

// New creates a watcher over dir.
func New(dir string, store *storage.Store, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher: fsw,
		store:   store,
		log:     logger,
		dir:     dir,
		done:    make(chan struct{}),
	}, nil
}

// Start begins monitoring the configured directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching for new lightcurves", "dir", w.dir)
	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !isLightcurveFile(event.Name) {
				continue
			}
			w.register(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) register(path string) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, err := w.store.AddContent(storage.KindSonification, name, path); err != nil {
		w.log.Error("failed to register lightcurve", "path", path, "error", err)
		return
	}
	w.log.Info("registered lightcurve", "name", name, "path", path)
}

func isLightcurveFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".fits", ".dat", ".txt":
		return true
	}
	return false
}
