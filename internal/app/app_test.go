package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
)

func memoryConfig(t *testing.T) *config.ReplicatorConfig {
	t.Helper()
	return &config.ReplicatorConfig{
		Replication: config.ReplicatorReplication{
			Identifier:    "humans-test",
			Collection:    "humans",
			Table:         "humans",
			PrimaryKey:    "id",
			ModifiedField: "_modified",
			DeletedField:  "_deleted",
			BatchSize:     10,
			Live:          true,
			Realtime:      true,
			Pull:          true,
			Push:          true,
			RetryTime:     10 * time.Millisecond,
		},
		Adapter: config.ReplicatorAdapter{Kind: config.AdapterMemory},
		Storage: config.ReplicatorStorage{
			DB: config.ReplicatorDB{DSN: filepath.Join(t.TempDir(), "replicator.db")},
		},
	}
}

func TestNewApp_UnknownAdapter(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Adapter.Kind = "carrier-pigeon"

	_, err := NewApp(context.Background(), cfg, models.AppBuildInfo{}, logger.Nop())
	assert.ErrorIs(t, err, errUnknownAdapterKind)
}

func TestNewApp_WithoutServer(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig(t), models.AppBuildInfo{}, logger.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.server)
	assert.NotNil(t, app.Services.Replication)
	assert.False(t, app.Services.ResyncJob.Enabled())
}

func TestApp_ReplicatesBothWays(t *testing.T) {
	cfg := memoryConfig(t)
	app, err := NewApp(context.Background(), cfg, models.AppBuildInfo{}, logger.Nop())
	require.NoError(t, err)
	defer app.Close()

	remote, ok := app.backend.(*adapter.MemoryBackend)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.NoError(t, app.Services.Replication.AwaitInitialReplication(ctx))

	// local write reaches the remote table
	_, err = app.Services.Documents.Put(ctx, "a", models.Document{"name": "Alice"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		rows := remote.Rows(cfg.Replication.Table)
		return len(rows) == 1 && rows[0]["name"] == "Alice"
	}, 5*time.Second, 10*time.Millisecond)

	// remote write reaches the local store through the change feed
	require.NoError(t, remote.Insert(ctx, cfg.Replication.Table, models.Document{"id": "b", "name": "Bob", "_deleted": false}))

	assert.Eventually(t, func() bool {
		doc, err := app.Services.Documents.Get(ctx, "b")
		return err == nil && doc["name"] == "Bob"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}
