package config

import (
	"context"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file on change and publishes the parsed result
// through an atomic pointer swap, so a reader in flight sees either the old
// or the new config, never a torn view (§5).
type Watcher struct {
	path string

	current atomic.Pointer[Config]

	fw *fsnotify.Watcher
}

// NewWatcher loads the initial config and prepares a watcher on its
// directory (editors frequently replace-via-rename on save, which fsnotify
// reports against the containing directory, not the file handle).
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, fw: fw}
	w.current.Store(cfg)
	return w, nil
}

// Current returns the most recently published config.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Run blocks, reloading on every relevant filesystem event until ctx is
// cancelled. A short debounce collapses the burst of events many editors
// emit for a single save.
func (w *Watcher) Run(ctx context.Context) {
	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(150*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watch error: %v", err)

		case <-reload:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Printf("[config] reload failed, keeping previous config: %v", err)
		return
	}
	w.current.Store(cfg)
	log.Printf("[config] reloaded, %d project(s)", len(cfg.Projects))
}
