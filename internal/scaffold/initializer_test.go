package scaffold

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/config"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/filestore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/redisstore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func readMessages(t *testing.T, store bus.Store) []bus.Message {
	msgs, corrupt, err := bus.NewClient(store).ReadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, corrupt)
	return msgs
}

func TestInitialize_FileBackend(t *testing.T) {
	ctx := context.Background()
	track := filepath.Join(t.TempDir(), "feature-xyz_20260201")
	require.NoError(t, os.Mkdir(track, 0o755))

	result, err := Initialize(ctx, Options{TrackPath: track, Now: clock})
	require.NoError(t, err)
	assert.True(t, result.QueueCreated)
	assert.True(t, result.InitWritten)
	assert.True(t, result.ConfigWritten)
	assert.Equal(t, config.BackendFile, result.Backend)

	for _, p := range []string{
		result.Paths.Queue, result.Paths.Locks, result.Paths.Workers,
		result.Paths.Assessments, result.Paths.Votes, result.Paths.Discussion,
		result.Paths.EventsDir, result.Paths.Config,
	} {
		assert.FileExists(t, p)
	}

	store, err := filestore.Open(track)
	require.NoError(t, err)
	defer store.Close()

	msgs := readMessages(t, store)
	require.Len(t, msgs, 1)
	assert.Equal(t, InitMessageID, msgs[0].ID)
	assert.Equal(t, bus.TypeBusInit, msgs[0].Type)
	assert.Equal(t, InitSource, msgs[0].Source)
	assert.True(t, msgs[0].Timestamp.Equal(fixedNow))
	assert.Equal(t, &bus.InitPayload{TrackPath: track, Version: "1.0"}, msgs[0].Payload)

	locks, err := os.ReadFile(result.Paths.Locks)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(locks))

	cfg, err := config.Load(result.Paths.Config)
	require.NoError(t, err)
	assert.Equal(t, "feature-xyz_20260201", cfg.TrackName)

	t.Run("second run changes nothing", func(t *testing.T) {
		again, err := Initialize(ctx, Options{TrackPath: track, Now: clock})
		require.NoError(t, err)
		assert.False(t, again.QueueCreated)
		assert.False(t, again.InitWritten)
		assert.False(t, again.ConfigWritten)
		assert.Len(t, readMessages(t, store), 1)
	})
}

func TestInitialize_CompletesInterruptedRun(t *testing.T) {
	ctx := context.Background()
	track := t.TempDir()
	paths := filestore.BuildPaths(track)
	created, err := filestore.EnsureLayout(paths)
	require.NoError(t, err)
	require.True(t, created)

	result, err := Initialize(ctx, Options{TrackPath: track, Now: clock})
	require.NoError(t, err)
	assert.False(t, result.QueueCreated)
	assert.True(t, result.InitWritten, "an empty queue still gets BUS_INIT")

	store, err := filestore.Open(track)
	require.NoError(t, err)
	defer store.Close()
	msgs := readMessages(t, store)
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.TypeBusInit, msgs[0].Type)

	again, err := Initialize(ctx, Options{TrackPath: track, Now: clock})
	require.NoError(t, err)
	assert.False(t, again.InitWritten)
	assert.Len(t, readMessages(t, store), 1)
}

func TestInitialize_KeepsExistingFiles(t *testing.T) {
	track := t.TempDir()
	paths := filestore.BuildPaths(track)
	require.NoError(t, os.MkdirAll(paths.Root, 0o755))
	require.NoError(t, os.WriteFile(paths.Locks, []byte(`{"a.go":{"worker_id":"w1"}}`), 0o644))

	_, err := Initialize(context.Background(), Options{TrackPath: track, Now: clock})
	require.NoError(t, err)

	data, err := os.ReadFile(paths.Locks)
	require.NoError(t, err)
	assert.Contains(t, string(data), "w1")
}

func TestInitialize_MissingTrack(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := Initialize(context.Background(), Options{TrackPath: missing})
	require.Error(t, err)
	assert.True(t, bus.IsNotFound(err))

	_, statErr := os.Stat(missing)
	assert.True(t, os.IsNotExist(statErr), "init must not create the track")
}

func TestInitialize_RedisBackend(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := redisstore.New(&redis.Options{Addr: mr.Addr()}, "feature-xyz")
	require.NoError(t, err)
	defer store.Close()

	track := t.TempDir()
	cfg := config.Default()
	cfg.Backend = config.BackendRedis
	cfg.TrackName = "feature-xyz"

	t.Run("requires a store", func(t *testing.T) {
		_, err := Initialize(ctx, Options{TrackPath: track, Config: cfg})
		assert.Error(t, err)
	})

	result, err := Initialize(ctx, Options{TrackPath: track, Config: cfg, Redis: store, Now: clock})
	require.NoError(t, err)
	assert.True(t, result.InitWritten)

	msgs := readMessages(t, store)
	require.Len(t, msgs, 1)
	assert.Equal(t, InitMessageID, msgs[0].ID)

	opened, err := redisstore.Open(ctx, &redis.Options{Addr: mr.Addr()}, "feature-xyz")
	require.NoError(t, err)
	opened.Close()

	again, err := Initialize(ctx, Options{TrackPath: track, Config: cfg, Redis: store, Now: clock})
	require.NoError(t, err)
	assert.False(t, again.InitWritten)
	assert.Len(t, readMessages(t, store), 1)
}

func TestCheckInitialized(t *testing.T) {
	track := t.TempDir()

	err := CheckInitialized(track)
	require.Error(t, err)
	assert.True(t, bus.IsNotFound(err))
	assert.Contains(t, err.Error(), filestore.BusDirName)

	_, err = filestore.EnsureLayout(filestore.BuildPaths(track))
	require.NoError(t, err)
	assert.NoError(t, CheckInitialized(track))

	file := filepath.Join(track, "plain.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, CheckTrack(file))
}
