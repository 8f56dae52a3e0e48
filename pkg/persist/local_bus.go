package persist

import "context"

// LocalBus delivers changes between Values living in the same process,
// the stand-in for several tabs of one browser.
type LocalBus struct {
	h *hub
}

// NewLocalBus creates an in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{h: newHub()}
}

// Publish fans c out to all subscribers of c.Key, the publisher included.
func (b *LocalBus) Publish(_ context.Context, c Change) error {
	b.h.deliver(c)
	return nil
}

// Subscribe registers a subscriber for key.
func (b *LocalBus) Subscribe(_ context.Context, key string) (<-chan Change, func(), error) {
	ch, cancel := b.h.subscribe(key)
	return ch, cancel, nil
}

// Close closes every subscriber channel.
func (b *LocalBus) Close() error {
	b.h.close()
	return nil
}

var _ Bus = (*LocalBus)(nil)
