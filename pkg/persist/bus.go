package persist

import (
	"context"
	"sync"
	"time"
)

// SubscriptionBuffer is the per-subscriber channel capacity.
const SubscriptionBuffer = 16

// Change announces that the value stored under Key was rewritten.
// Origin identifies the writing Value; it is empty when the writer is unknown.
type Change struct {
	Key    string    `json:"key"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Bus is a publish/subscribe channel keyed by storage key.
type Bus interface {
	// Publish announces a change to every subscriber of c.Key.
	Publish(ctx context.Context, c Change) error
	// Subscribe returns a channel of changes for key and a cancel func.
	Subscribe(ctx context.Context, key string) (<-chan Change, func(), error)
	// Close stops delivery to all subscribers.
	Close() error
}

// NopBus never delivers anything.
type NopBus struct{}

func (NopBus) Publish(context.Context, Change) error { return nil }

func (NopBus) Subscribe(context.Context, string) (<-chan Change, func(), error) {
	return nil, func() {}, nil
}

func (NopBus) Close() error { return nil }

// hub fans changes out to per-key subscriber channels.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Change
	nextID int
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan Change)}
}

func (h *hub) subscribe(key string) (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Change, SubscriptionBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan Change)
	}
	h.subs[key][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[key][id]; ok {
				delete(h.subs[key], id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// deliver never blocks. A full buffer already holds a pending change for the
// key, and receivers re-read the backend, so dropping loses nothing.
func (h *hub) deliver(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[c.Key] {
		select {
		case ch <- c:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for key, subs := range h.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.subs, key)
	}
}
