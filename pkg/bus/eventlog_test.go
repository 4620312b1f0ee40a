package bus_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_PreservesOrder(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()

		var ids []string
		for i := 0; i < 5; i++ {
			msg := bus.NewMessage(bus.TypeTaskProgress, "w1", &bus.TaskPayload{TaskID: "t1", ProgressPct: i * 20})
			require.NoError(t, client.Append(ctx, msg))
			ids = append(ids, msg.ID)
		}

		first, corrupt, err := client.ReadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, corrupt)
		require.Len(t, first, 5)
		for i, msg := range first {
			assert.Equal(t, ids[i], msg.ID)
			task, ok := msg.Payload.(*bus.TaskPayload)
			require.True(t, ok)
			assert.Equal(t, i*20, task.ProgressPct)
		}

		second, _, err := client.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second, "reads must be idempotent")
	})
}

func TestAppend_FillsTimestamp(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, clock *fakeClock) {
		ctx := context.Background()

		msg := bus.Message{ID: "m1", Type: "CUSTOM", Source: "w1", Payload: bus.RawPayload{"k": "v"}}
		require.NoError(t, client.Append(ctx, msg))

		msgs, _, err := client.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].Timestamp.Equal(clock.Now()))
		assert.Equal(t, bus.RawPayload{"k": "v"}, msgs[0].Payload)
	})
}

func TestAppend_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		msg   bus.Message
		field string
	}{
		{"missing id", bus.Message{Type: bus.TypeHeartbeat, Source: "w1"}, "id"},
		{"missing type", bus.Message{ID: "m1", Source: "w1"}, "type"},
		{"blocked without waiting_for", bus.NewMessage(bus.TypeBlocked, "w1", &bus.BlockedPayload{Reason: "x"}), "payload.waiting_for"},
		{"blocked with raw payload", bus.NewMessage(bus.TypeBlocked, "w1", bus.RawPayload{"reason": "x"}), "payload.waiting_for"},
		{"progress out of range", bus.NewMessage(bus.TypeHeartbeat, "w1", &bus.HeartbeatPayload{ProgressPct: 150}), "progress_pct"},
		{"task progress out of range", bus.NewMessage(bus.TypeTaskProgress, "w1", &bus.TaskPayload{ProgressPct: -1}), "progress_pct"},
	}

	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := client.Append(ctx, tt.msg)
				require.Error(t, err)
				assert.True(t, bus.IsValidation(err))
				assert.Contains(t, err.Error(), tt.field)
			})
		}

		msgs, _, err := client.ReadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, msgs, "rejected messages must not be written")
	})
}

func TestMessages_ReportsCorruptEntries(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()

		require.NoError(t, client.Append(ctx, bus.NewMessage(bus.TypeHeartbeat, "w1", &bus.HeartbeatPayload{})))
		require.NoError(t, client.Store().Append(ctx, bus.StreamQueue, []byte(`{"id":"broken"`)))
		require.NoError(t, client.Store().Append(ctx, bus.StreamQueue, []byte(`{"id":"m3","payload":{}}`)))
		require.NoError(t, client.Append(ctx, bus.NewMessage(bus.TypeHeartbeat, "w2", &bus.HeartbeatPayload{})))

		msgs, corrupt, err := client.ReadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
		require.Len(t, corrupt, 2)
		assert.Equal(t, 2, corrupt[0].Line)
		assert.Equal(t, 3, corrupt[1].Line)
		assert.True(t, bus.IsCorrupt(corrupt[0]))
	})
}

func TestAppend_TaskWithoutTaskID(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()
		require.NoError(t, client.Append(ctx, bus.NewMessage(bus.TypeTaskComplete, "w1", &bus.TaskPayload{Summary: "done"})))
		require.NoError(t, client.Append(ctx, bus.NewMessage(bus.TypeTaskStarted, "w1", nil)))

		msgs, corrupt, err := client.ReadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, corrupt)
		assert.Len(t, msgs, 2)
	})
}

func TestMessages_KeepsMessagesFromOtherWriters(t *testing.T) {
	lines := []string{
		`{"id":"msg-init","type":"BUS_INIT","source":"msgbus-init","timestamp":"2025-03-01T09:00:00.123456","payload":{"track_path":"/t","version":"1.0"}}`,
		`{"id":"m2","type":"TASK_COMPLETE","source":"w1","timestamp":"2025-03-01T09:01:00","payload":{"summary":"done"}}`,
		`{"id":"m3","type":"HEARTBEAT","source":"w1","timestamp":"2025-03-01T09:02:00","payload":{"progress_pct":50.0}}`,
		`{"id":"m4","type":"BLOCKED","source":"w2","timestamp":"2025-03-01T09:03:00","payload":{"resource":"a.go"}}`,
		`{"id":"m5","type":"HEARTBEAT","source":"w3","timestamp":"2025-03-01T09:04:00","payload":{"progress_pct":"half"}}`,
		`{"id":"m6","type":"TASK_PROGRESS","source":"w3","payload":{"task_id":"t1","progress_pct":33.4}}`,
	}

	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()
		for _, line := range lines {
			require.NoError(t, client.Store().Append(ctx, bus.StreamQueue, []byte(line)))
		}

		msgs, corrupt, err := client.ReadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, corrupt)
		require.Len(t, msgs, 6)

		task, ok := msgs[1].Payload.(*bus.TaskPayload)
		require.True(t, ok)
		assert.Equal(t, "done", task.Summary)
		assert.Empty(t, task.TaskID)

		hb, ok := msgs[2].Payload.(*bus.HeartbeatPayload)
		require.True(t, ok)
		assert.Equal(t, 50, hb.ProgressPct)

		blocked, ok := msgs[3].Blocked()
		require.True(t, ok)
		assert.Empty(t, blocked.WaitingFor)
		assert.Equal(t, "a.go", blocked.Resource)

		assert.Equal(t, bus.RawPayload{"progress_pct": "half"}, msgs[4].Payload)

		progress, ok := msgs[5].Payload.(*bus.TaskPayload)
		require.True(t, ok)
		assert.Equal(t, 33, progress.ProgressPct)
	})
}

func TestMessages_EarlyBreak(t *testing.T) {
	eachBackend(t, func(t *testing.T, client *bus.Client, _ *fakeClock) {
		ctx := context.Background()
		for i := 0; i < 10; i++ {
			msg := bus.NewMessage(bus.MessageType(fmt.Sprintf("CUSTOM_%d", i)), "w1", nil)
			require.NoError(t, client.Append(ctx, msg))
		}

		seen := 0
		for _, err := range client.Messages(ctx) {
			require.NoError(t, err)
			seen++
			if seen == 3 {
				break
			}
		}
		assert.Equal(t, 3, seen)
	})
}
