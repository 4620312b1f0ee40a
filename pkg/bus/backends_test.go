package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/filestore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/redisstore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock shared between a test and its client.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type backend struct {
	name string
	open func(t *testing.T) bus.Store
}

var backends = []backend{
	{
		name: "file",
		open: func(t *testing.T) bus.Store {
			track := t.TempDir()
			_, err := filestore.EnsureLayout(filestore.BuildPaths(track))
			require.NoError(t, err)
			store, err := filestore.Open(track)
			require.NoError(t, err)
			return store
		},
	},
	{
		name: "redis",
		open: func(t *testing.T) bus.Store {
			mr := miniredis.NewMiniRedis()
			require.NoError(t, mr.Start())
			t.Cleanup(mr.Close)

			store, err := redisstore.New(&redis.Options{Addr: mr.Addr()}, "test-track")
			require.NoError(t, err)
			_, err = store.Init(context.Background(), "/tracks/test")
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	},
}

// eachBackend runs fn once per store implementation with a fresh client.
func eachBackend(t *testing.T, fn func(t *testing.T, client *bus.Client, clock *fakeClock)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			clock := newFakeClock()
			client := bus.NewClient(b.open(t), bus.WithClock(clock.Now))
			fn(t, client, clock)
		})
	}
}
