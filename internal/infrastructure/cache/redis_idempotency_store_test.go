//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/clubledger/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return config.RedisConfig{Host: host, Port: port.Int()}
}

func TestRedisIdempotencyStore(t *testing.T) {
	cfg := startRedis(t)
	ctx := context.Background()

	store, err := NewRedisIdempotencyStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	isNew, err := store.MarkProcessed(ctx, "stripe:evt_1", time.Second)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "stripe:evt_1", time.Second)
	require.NoError(t, err)
	assert.False(t, isNew)

	done, err := store.IsProcessed(ctx, "stripe:evt_1")
	require.NoError(t, err)
	assert.True(t, done)

	assert.Eventually(t, func() bool {
		done, err := store.IsProcessed(ctx, "stripe:evt_1")
		return err == nil && !done
	}, 5*time.Second, 100*time.Millisecond, "key expires with its ttl")
}

func TestNewIdempotencyStore_Redis(t *testing.T) {
	cfg := startRedis(t)
	store := NewIdempotencyStore(context.Background(), cfg, nil)
	defer store.Close()
	assert.IsType(t, &RedisIdempotencyStore{}, store)
}
