//go:build !(js && wasm)

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/devdiary/internal/config"
)

func testConfig(t *testing.T, backend, sync string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Backend: backend, Dir: t.TempDir(), Key: config.DefaultStorageKey},
		Sync:    config.SyncConfig{Mode: sync},
		AI:      config.AIConfig{Timeout: time.Second},
	}
}

func TestOpenPersistsAcrossSessions(t *testing.T) {
	cases := map[string]*config.Config{
		"FS":     testConfig(t, config.BackendFS, config.SyncWatch),
		"SQLite": testConfig(t, config.BackendSQLite, config.SyncLocal),
	}

	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			s, err := Open(ctx, cfg, nil)
			require.NoError(t, err)
			p, err := s.AddProject("Alpha")
			require.NoError(t, err)
			require.NoError(t, s.Close())

			reopened, err := Open(ctx, cfg, nil)
			require.NoError(t, err)
			defer reopened.Close()

			got, ok := reopened.GetProjectByID(p.ID)
			require.True(t, ok)
			assert.Equal(t, "Alpha", got.Title)
		})
	}
}

func TestOpenWatchSyncsSeparateStores(t *testing.T) {
	cfg := testConfig(t, config.BackendFS, config.SyncWatch)
	ctx := context.Background()

	a, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Close()

	p, err := a.AddProject("Shared")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := b.GetProjectByID(p.ID)
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestOpenRejectsUnknownModes(t *testing.T) {
	cfg := testConfig(t, "s3", config.SyncNone)
	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown storage backend")

	cfg = testConfig(t, config.BackendFS, "smoke-signals")
	_, err = Open(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown sync mode")
}
