package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file and delivers reloaded configs.
// Editors replace files on save, so the parent directory is watched and
// events are debounced before reloading.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	reloads  chan *Config
	debounce time.Duration
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	return &Watcher{
		path:     path,
		fsw:      fsw,
		reloads:  make(chan *Config, 1),
		debounce: 250 * time.Millisecond,
	}, nil
}

// Reloads returns the channel of reloaded configurations.
func (w *Watcher) Reloads() <-chan *Config {
	return w.reloads
}

// Run processes filesystem events until the context is canceled.
// Invalid configs are skipped; the previous config stays in effect.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			cfg, err := Load(w.path)
			if err != nil {
				continue
			}
			select {
			case w.reloads <- cfg:
			default:
				// A reload is already queued; drop the stale one.
				<-w.reloads
				w.reloads <- cfg
			}

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
