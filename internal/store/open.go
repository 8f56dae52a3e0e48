//go:build !(js && wasm)

package store

import (
	"context"
	"fmt"

	"github.com/kittclouds/devdiary/internal/config"
	"github.com/kittclouds/devdiary/internal/logger"
	"github.com/kittclouds/devdiary/pkg/persist"
)

// Open builds the backend and bus described by cfg and loads the store.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}

	backend, err := OpenBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	bus, err := OpenBus(ctx, cfg, log)
	if err != nil {
		backend.Close()
		return nil, err
	}

	value := persist.Load(ctx, cfg.Storage.Key, DefaultAppData(),
		persist.WithBackend(backend),
		persist.WithBus(bus),
		persist.WithLogger(log),
	)

	return New(value,
		WithLogger(log),
		WithLocation(cfg.App.Location()),
		WithClosers(bus, backend),
	), nil
}

// OpenBackend creates the configured storage backend.
func OpenBackend(cfg config.StorageConfig) (persist.Backend, error) {
	switch cfg.Backend {
	case config.BackendFS:
		b, err := persist.NewOSBackend(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open fs storage: %w", err)
		}
		return b, nil
	case config.BackendSQLite:
		b, err := persist.NewSQLiteBackendWithDSN(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// OpenBus creates the configured change bus.
func OpenBus(ctx context.Context, cfg *config.Config, log *logger.Logger) (persist.Bus, error) {
	switch cfg.Sync.Mode {
	case config.SyncNone:
		return persist.NopBus{}, nil
	case config.SyncLocal:
		return persist.NewLocalBus(), nil
	case config.SyncRedis:
		return persist.NewRedisBus(ctx, persist.RedisOptions{
			Addr:     cfg.Sync.RedisAddr,
			Password: cfg.Sync.RedisPassword,
			DB:       cfg.Sync.RedisDB,
		}, log)
	case config.SyncWatch:
		return persist.NewWatchBus(cfg.Storage.Dir, log)
	default:
		return nil, fmt.Errorf("unknown sync mode %q", cfg.Sync.Mode)
	}
}
