package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/devdiary/internal/logger"
)

// Option configures a Value.
type Option func(*options)

type options struct {
	backend Backend
	bus     Bus
	log     *logger.Logger
}

// WithBackend sets the durable store. Without one the Value is memory-only.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithBus sets the change channel. Without one no sync happens.
func WithBus(b Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// Value is a JSON-serialized T persisted under one key.
// All methods are safe for concurrent use.
type Value[T any] struct {
	mu      sync.RWMutex
	key     string
	origin  string
	state   T
	lastRaw []byte

	backend Backend
	bus     Bus
	log     *logger.Logger

	watchMu   sync.Mutex
	watchers  map[int]func(T)
	nextWatch int

	ctx         context.Context
	stop        context.CancelFunc
	unsubscribe func()
	done        chan struct{}
	closeOnce   sync.Once
}

// Load reads key from the backend, falling back to initial when the key is
// absent, unreadable or malformed, and starts listening for foreign writes.
// It never fails; problems are logged.
func Load[T any](ctx context.Context, key string, initial T, opts ...Option) *Value[T] {
	o := options{bus: NopBus{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewNop()
	}
	if o.bus == nil {
		o.bus = NopBus{}
	}

	lctx, stop := context.WithCancel(ctx)
	v := &Value[T]{
		key:      key,
		origin:   uuid.NewString(),
		state:    initial,
		backend:  o.backend,
		bus:      o.bus,
		log:      o.log.WithComponent("persist").WithKey(key),
		watchers: make(map[int]func(T)),
		ctx:      lctx,
		stop:     stop,
		done:     make(chan struct{}),
	}

	if v.backend != nil {
		raw, err := v.backend.Read(key)
		switch {
		case errors.Is(err, ErrNotFound):
			v.log.Debug("No stored value, using initial value")
		case err != nil:
			v.log.Warnw("Failed to read stored value, using initial value", "error", err)
		default:
			var decoded T
			if err := json.Unmarshal(raw, &decoded); err != nil {
				v.log.Warnw("Stored value is malformed, using initial value", "error", err)
			} else {
				v.state = decoded
				v.lastRaw = raw
			}
		}
	}

	ch, unsubscribe, err := v.bus.Subscribe(lctx, key)
	if err != nil {
		v.log.Warnw("Failed to subscribe to changes, running unsynchronized", "error", err)
		ch, unsubscribe = nil, func() {}
	}
	v.unsubscribe = unsubscribe
	go v.listen(ch)

	return v
}

// Key returns the storage key.
func (v *Value[T]) Key() string {
	return v.key
}

// Origin returns the id this Value tags its change notifications with.
func (v *Value[T]) Origin() string {
	return v.origin
}

// Get returns the current in-memory state.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Set replaces the state.
func (v *Value[T]) Set(next T) {
	v.UpdateIf(func(T) (T, bool) { return next, true })
}

// Update replaces the state with fn(previous).
func (v *Value[T]) Update(fn func(prev T) T) {
	v.UpdateIf(func(prev T) (T, bool) { return fn(prev), true })
}

// UpdateIf applies fn to the previous state and commits the result only when
// fn reports ok. It returns whether a commit happened. fn runs under the
// write lock and must not call back into the Value.
func (v *Value[T]) UpdateIf(fn func(prev T) (next T, ok bool)) bool {
	v.mu.Lock()
	next, ok := fn(v.state)
	if !ok {
		v.mu.Unlock()
		return false
	}
	v.state = next
	written := v.persistLocked()
	v.mu.Unlock()

	if written {
		v.publish()
	}
	v.notify(next)
	return true
}

// persistLocked serializes and writes the state. A failed write keeps the
// in-memory state; the Value degrades to memory-only for that write.
func (v *Value[T]) persistLocked() bool {
	if v.backend == nil {
		return false
	}

	raw, err := json.Marshal(v.state)
	if err != nil {
		v.log.Errorw("Failed to serialize value, keeping it in memory only", "error", err)
		return false
	}
	if err := v.backend.Write(v.key, raw); err != nil {
		v.log.Errorw("Failed to persist value, keeping it in memory only", "error", err)
		return false
	}
	v.lastRaw = raw
	return true
}

func (v *Value[T]) publish() {
	c := Change{Key: v.key, Origin: v.origin, At: time.Now().UTC()}
	if err := v.bus.Publish(v.ctx, c); err != nil {
		v.log.Warnw("Failed to publish change", "error", err)
	}
}

// OnChange registers fn to run after every local or remote state change.
// The returned func unregisters it.
func (v *Value[T]) OnChange(fn func(T)) func() {
	v.watchMu.Lock()
	defer v.watchMu.Unlock()

	id := v.nextWatch
	v.nextWatch++
	v.watchers[id] = fn

	return func() {
		v.watchMu.Lock()
		defer v.watchMu.Unlock()
		delete(v.watchers, id)
	}
}

func (v *Value[T]) notify(state T) {
	v.watchMu.Lock()
	fns := make([]func(T), 0, len(v.watchers))
	for _, fn := range v.watchers {
		fns = append(fns, fn)
	}
	v.watchMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// listen applies foreign writes until the Value is closed.
func (v *Value[T]) listen(ch <-chan Change) {
	defer close(v.done)
	if ch == nil {
		<-v.ctx.Done()
		return
	}

	for {
		select {
		case <-v.ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			if c.Origin == v.origin {
				continue
			}
			v.reload()
		}
	}
}

// reload re-reads the backend and applies the stored value if it differs
// from what this Value last saw. Malformed payloads are logged and ignored.
func (v *Value[T]) reload() {
	if v.backend == nil {
		return
	}

	v.mu.Lock()
	raw, err := v.backend.Read(v.key)
	if err != nil {
		v.mu.Unlock()
		if !errors.Is(err, ErrNotFound) {
			v.log.Warnw("Failed to re-read value after remote change", "error", err)
		}
		return
	}
	if bytes.Equal(raw, v.lastRaw) {
		v.mu.Unlock()
		return
	}

	var decoded T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		v.mu.Unlock()
		v.log.Warnw("Ignoring malformed remote value", "error", err)
		return
	}
	v.state = decoded
	v.lastRaw = raw
	v.mu.Unlock()

	v.log.Debug("Applied remote change")
	v.notify(decoded)
}

// Reload forces a re-read of the backend, as if a remote change arrived.
func (v *Value[T]) Reload() {
	v.reload()
}

// Flush writes the current state to the backend.
func (v *Value[T]) Flush() error {
	if v.backend == nil {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	raw, err := json.Marshal(v.state)
	if err != nil {
		return err
	}
	if bytes.Equal(raw, v.lastRaw) {
		return nil
	}
	if err := v.backend.Write(v.key, raw); err != nil {
		return err
	}
	v.lastRaw = raw
	return nil
}

// Close stops listening and flushes the state. It is safe to call twice.
func (v *Value[T]) Close() error {
	var err error
	v.closeOnce.Do(func() {
		v.stop()
		v.unsubscribe()
		<-v.done
		err = v.Flush()
	})
	return err
}
