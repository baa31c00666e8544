package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/logscope/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const (
	watchDebounce      = 100 * time.Millisecond
	followPollInterval = time.Second
)

// watchDir signals on the returned channel whenever files in dir are written
// or created. Bursts of events are debounced into one signal. The channel is
// closed when ctx is done or the watcher fails.
func watchDir(ctx context.Context, dir string, log *logging.Logger) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer func() { _ = watcher.Close() }()

		debounceTimer := time.NewTimer(0)
		<-debounceTimer.C // drain initial timer

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// Removals come with a Create for the next file or a Clear,
				// which queries handle without a signal of their own.
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				debounceTimer.Reset(watchDebounce)

			case <-debounceTimer.C:
				notify(changes)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("file watcher error", "dir", dir, "error", err)
			}
		}
	}()
	return changes, nil
}

// pollChanges signals every interval until ctx is done. It stands in for a
// watcher on database backends.
func pollChanges(ctx context.Context, interval time.Duration) <-chan struct{} {
	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				notify(changes)
			}
		}
	}()
	return changes
}

// notify performs a non-blocking send; a pending signal already covers this one.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
