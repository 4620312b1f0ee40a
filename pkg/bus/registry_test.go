package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, clock *fakeClock) {
		ctx := context.Background()

		_, err := client.Report(ctx, "w1", bus.StatusRunning, "t1", 50)
		require.NoError(t, err)

		clock.Advance(time.Minute)
		_, err = client.Report(ctx, "w1", bus.StatusDone, "t1", 100)
		require.NoError(t, err)

		ws, err := client.Worker(ctx, "w1")
		require.NoError(t, err)
		assert.Equal(t, bus.StatusDone, ws.Status)
		assert.Equal(t, 100, ws.ProgressPct)
		assert.True(t, ws.LastHeartbeat.Equal(clock.Now()))

		all, corrupt, err := client.AllStatuses(ctx)
		require.NoError(t, err)
		assert.Empty(t, corrupt)
		assert.Len(t, all, 1)
	})
}

func TestReport_Validation(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()

		_, err := client.Report(ctx, "", bus.StatusRunning, "t1", 0)
		assert.True(t, bus.IsValidation(err))

		_, err = client.Report(ctx, "w1", "SLEEPING", "t1", 0)
		assert.True(t, bus.IsValidation(err))

		_, err = client.Report(ctx, "w1", bus.StatusRunning, "t1", 101)
		assert.True(t, bus.IsValidation(err))

		_, err = client.Worker(ctx, "w1")
		assert.ErrorIs(t, err, bus.ErrKeyNotFound, "nothing written on invalid input")
	})
}

func TestAllStatuses_SkipsUnknownStatus(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()
		require.NoError(t, client.Store().Put(ctx, bus.TableWorkers, "w9", []byte(`{"status":"ZOMBIE"}`)))
		_, err := client.Report(ctx, "w1", bus.StatusRunning, "", 0)
		require.NoError(t, err)

		all, corrupt, err := client.AllStatuses(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		require.Len(t, corrupt, 1)
		assert.Equal(t, "w9", corrupt[0].Key)
	})
}

func TestAllStatuses_FractionalProgress(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()
		require.NoError(t, client.Store().Put(ctx, bus.TableWorkers, "w1",
			[]byte(`{"status":"RUNNING","task_id":"t1","progress_pct":75.0,"last_heartbeat":"2025-03-01T09:00:00.000001"}`)))

		all, corrupt, err := client.AllStatuses(ctx)
		require.NoError(t, err)
		assert.Empty(t, corrupt)
		require.Contains(t, all, "w1")
		assert.Equal(t, 75, all["w1"].ProgressPct)
		assert.Equal(t, "t1", all["w1"].TaskID)

		ws, err := client.Worker(ctx, "w1")
		require.NoError(t, err)
		assert.Equal(t, 75, ws.ProgressPct)
	})
}
