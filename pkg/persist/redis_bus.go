package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kittclouds/devdiary/internal/logger"
)

// RedisChannelPrefix namespaces the pub/sub channels.
const RedisChannelPrefix = "devdiary:storage:"

// RedisOptions configures a RedisBus.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisBus carries changes between processes over Redis pub/sub.
// Delivery is at-most-once: a subscriber that is offline misses the change
// and only catches up on its next local load.
type RedisBus struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(ctx context.Context, opts RedisOptions, log *logger.Logger) (*RedisBus, error) {
	if log == nil {
		log = logger.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis bus: failed to connect to %s: %w", opts.Addr, err)
	}

	return &RedisBus{client: client, log: log.WithComponent("redis-bus")}, nil
}

func channelFor(key string) string {
	return RedisChannelPrefix + key
}

// Publish sends c as JSON on the key's channel.
func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis bus: failed to encode change: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(c.Key), payload).Err(); err != nil {
		return fmt.Errorf("redis bus: failed to publish: %w", err)
	}
	return nil
}

// Subscribe listens on the key's channel until cancel is called.
func (b *RedisBus) Subscribe(ctx context.Context, key string) (<-chan Change, func(), error) {
	ps := b.client.Subscribe(ctx, channelFor(key))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("redis bus: failed to subscribe: %w", err)
	}

	out := make(chan Change, SubscriptionBuffer)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.log.Warnw("Dropping malformed change notification", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case out <- c:
			default:
			}
		}
	}()

	cancel := func() {
		if err := ps.Close(); err != nil {
			b.log.Debugw("Failed to close subscription", "key", key, "error", err)
		}
	}
	return out, cancel, nil
}

// Close closes the Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

var _ Bus = (*RedisBus)(nil)
