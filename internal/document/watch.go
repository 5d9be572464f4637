package document

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 200 * time.Millisecond

// Watcher reports when a local document changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	settle  time.Duration
}

// NewWatcher creates a watcher. Bursts of events inside settle collapse
// into one notification.
func NewWatcher(settle time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{watcher: w, settle: settle}, nil
}

// Watch emits path each time the file is written, created or replaced. The
// parent directory is watched so editors that save by rename still count.
// The channel closes when ctx ends or the watcher stops.
func (w *Watcher) Watch(ctx context.Context, path string) (<-chan string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	changes := make(chan string, 1)
	go func() {
		defer close(changes)
		var timer *time.Timer
		var fire <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(w.settle)
				} else {
					timer.Reset(w.settle)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				select {
				case changes <- path:
				case <-ctx.Done():
					return
				default:
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[watch] %s: %v", path, err)
			}
		}
	}()
	return changes, nil
}

// Stop releases the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
