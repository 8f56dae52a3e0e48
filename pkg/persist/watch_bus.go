package persist

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kittclouds/devdiary/internal/logger"
)

// WatchBus turns writes to <dir>/<key>.json into changes, so separate
// processes sharing an OS data directory see each other's writes without any
// broker. Publish is a no-op because the file write is the notification.
// Origins are unknown, so every write (including one's own) is delivered;
// receivers compare payloads to skip their own writes. Editors that replace
// files atomically may coalesce several writes into one event.
type WatchBus struct {
	watcher *fsnotify.Watcher
	h       *hub
	log     *logger.Logger
	done    chan struct{}
	once    sync.Once
}

// NewWatchBus watches osDir for changes.
func NewWatchBus(osDir string, log *logger.Logger) (*WatchBus, error) {
	if log == nil {
		log = logger.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch bus: failed to create watcher: %w", err)
	}
	if err := watcher.Add(osDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch bus: failed to watch %s: %w", osDir, err)
	}

	b := &WatchBus{
		watcher: watcher,
		h:       newHub(),
		log:     log.WithComponent("watch-bus"),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b, nil
}

func (b *WatchBus) loop() {
	defer close(b.done)
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, FileExt) {
				continue
			}
			b.h.deliver(Change{
				Key: strings.TrimSuffix(name, FileExt),
				At:  time.Now().UTC(),
			})
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.log.Warnw("File watcher error", "error", err)
		}
	}
}

// Publish does nothing; the watcher observes the write itself.
func (b *WatchBus) Publish(context.Context, Change) error {
	return nil
}

// Subscribe registers a subscriber for key.
func (b *WatchBus) Subscribe(_ context.Context, key string) (<-chan Change, func(), error) {
	ch, cancel := b.h.subscribe(key)
	return ch, cancel, nil
}

// Close stops the watcher and closes all subscriber channels.
func (b *WatchBus) Close() error {
	var err error
	b.once.Do(func() {
		err = b.watcher.Close()
		<-b.done
		b.h.close()
	})
	return err
}

var _ Bus = (*WatchBus)(nil)
