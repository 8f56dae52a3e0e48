//go:build js && wasm

package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall/js"
)

// BroadcastBus relays changes between browser tabs of the same origin over
// a BroadcastChannel. Subscribers in the publishing tab are served locally,
// since a channel never echoes to its sender.
type BroadcastBus struct {
	h         *hub
	channel   js.Value
	onMessage js.Func
}

// NewBroadcastBus joins the channel called name.
func NewBroadcastBus(name string) (*BroadcastBus, error) {
	ctor := js.Global().Get("BroadcastChannel")
	if ctor.IsUndefined() {
		return nil, errors.New("persist: BroadcastChannel is not available")
	}

	b := &BroadcastBus{h: newHub(), channel: ctor.New(name)}
	b.onMessage = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		data := args[0].Get("data")
		if data.Type() != js.TypeString {
			return nil
		}
		var c Change
		if err := json.Unmarshal([]byte(data.String()), &c); err != nil {
			return nil
		}
		b.h.deliver(c)
		return nil
	})
	b.channel.Call("addEventListener", "message", b.onMessage)
	return b, nil
}

// Publish delivers c to local subscribers and posts it to the other tabs.
func (b *BroadcastBus) Publish(_ context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("persist: failed to encode change: %w", err)
	}
	b.h.deliver(c)
	b.channel.Call("postMessage", string(payload))
	return nil
}

// Subscribe registers a subscriber for key.
func (b *BroadcastBus) Subscribe(_ context.Context, key string) (<-chan Change, func(), error) {
	ch, cancel := b.h.subscribe(key)
	return ch, cancel, nil
}

// Close leaves the channel and closes every subscriber channel.
func (b *BroadcastBus) Close() error {
	b.channel.Call("removeEventListener", "message", b.onMessage)
	b.channel.Call("close")
	b.onMessage.Release()
	b.h.close()
	return nil
}

var _ Bus = (*BroadcastBus)(nil)
