//go:build integration

package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")

	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

// TestBusAgainstRealRedis runs the lock lifecycle through a real server, where
// WATCH/MULTI contention behaves exactly as in production.
func TestBusAgainstRealRedis(t *testing.T) {
	redisURL := setupRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	store, err := New(opts, "integration")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Init(ctx, "/tracks/integration")
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	client := bus.NewClient(store, bus.WithClock(func() time.Time { return now }))

	_, err = client.Acquire(ctx, "src/a.go", "w1", time.Minute)
	require.NoError(t, err)

	_, err = client.Acquire(ctx, "src/a.go", "w2", time.Minute)
	assert.True(t, bus.IsLockHeld(err))

	now = now.Add(2 * time.Minute)
	_, err = client.Acquire(ctx, "src/a.go", "w2", time.Minute)
	require.NoError(t, err)

	msg := bus.NewMessage(bus.TypeHeartbeat, "w2", &bus.HeartbeatPayload{TaskID: "t1", ProgressPct: 10})
	require.NoError(t, client.Append(ctx, msg))

	msgs, corrupt, err := client.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, corrupt)
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.TypeHeartbeat, msgs[0].Type)
}
