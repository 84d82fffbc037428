// Package watch observes the file-backed store directory so the recent
// listing can refresh when another process mutates session records.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StoreWatcher watches a store directory and fires a callback, debounced,
// whenever session files change.
type StoreWatcher struct {
	dir          string
	watcher      *fsnotify.Watcher
	onChange     func()
	debounceTime time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	pending bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStoreWatcher creates a watcher over dir. onChange may be nil.
func NewStoreWatcher(dir string, onChange func(), logger *slog.Logger) (*StoreWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StoreWatcher{
		dir:          dir,
		watcher:      watcher,
		onChange:     onChange,
		debounceTime: 500 * time.Millisecond,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start begins watching the store directory.
func (sw *StoreWatcher) Start() error {
	if err := sw.watcher.Add(sw.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", sw.dir, err)
	}

	sw.wg.Add(2)
	go sw.eventLoop()
	go sw.debounceLoop()
	return nil
}

// Stop stops the watcher and waits for its goroutines.
func (sw *StoreWatcher) Stop() error {
	sw.cancel()
	sw.wg.Wait()
	return sw.watcher.Close()
}

func (sw *StoreWatcher) eventLoop() {
	defer sw.wg.Done()

	for {
		select {
		case <-sw.ctx.Done():
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleEvent(event)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn("store watcher error", "error", err)
		}
	}
}

func (sw *StoreWatcher) handleEvent(event fsnotify.Event) {
	// Only session record files are interesting
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		sw.mu.Lock()
		sw.pending = true
		sw.mu.Unlock()
	}
}

func (sw *StoreWatcher) debounceLoop() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-sw.ctx.Done():
			return
		case <-ticker.C:
			sw.mu.Lock()
			fire := sw.pending
			sw.pending = false
			sw.mu.Unlock()

			if fire && sw.onChange != nil {
				sw.onChange()
			}
		}
	}
}
