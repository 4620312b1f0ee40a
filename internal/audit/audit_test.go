package audit

import (
	"testing"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestStaleWorkers(t *testing.T) {
	statuses := map[string]bus.WorkerStatus{
		"w3": {Status: bus.StatusRunning, TaskID: "t3", LastHeartbeat: bus.At(now.Add(-12 * time.Minute))},
		"w1": {Status: bus.StatusRunning, TaskID: "t1", LastHeartbeat: bus.At(now.Add(-45*time.Minute - 30*time.Second))},
		"w2": {Status: bus.StatusRunning, TaskID: "t2", LastHeartbeat: bus.At(now.Add(-2 * time.Minute))},
		"w4": {Status: bus.StatusDone, TaskID: "t4", LastHeartbeat: bus.At(now.Add(-time.Hour))},
		"w5": {Status: bus.StatusRunning, TaskID: "t5"},
	}

	stale := StaleWorkers(statuses, 10*time.Minute, now)
	require.Len(t, stale, 2)
	assert.Equal(t, "w1", stale[0].WorkerID)
	assert.Equal(t, 45, stale[0].MinutesStale)
	assert.Equal(t, "t1", stale[0].TaskID)
	assert.Equal(t, "w3", stale[1].WorkerID)
	assert.Equal(t, 12, stale[1].MinutesStale)

	t.Run("exactly at threshold is not stale", func(t *testing.T) {
		edge := map[string]bus.WorkerStatus{
			"w1": {Status: bus.StatusRunning, LastHeartbeat: bus.At(now.Add(-10 * time.Minute))},
		}
		assert.Empty(t, StaleWorkers(edge, 10*time.Minute, now))
	})

	t.Run("zero threshold uses default", func(t *testing.T) {
		assert.Len(t, StaleWorkers(statuses, 0, now), 2)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		before := len(statuses)
		StaleWorkers(statuses, time.Minute, now)
		assert.Len(t, statuses, before)
	})
}

func TestLockAudit(t *testing.T) {
	locks := map[string]bus.Lock{
		"b.go": {WorkerID: "w1", ExpiresAt: bus.At(now.Add(-5 * time.Minute))},
		"a.go": {WorkerID: "w2", ExpiresAt: bus.At(now.Add(-90 * time.Second))},
		"c.go": {WorkerID: "w3", ExpiresAt: bus.At(now.Add(time.Minute))},
		"d.go": {WorkerID: "w4", ExpiresAt: bus.At(now)},
		"e.go": {WorkerID: "w5"},
	}

	expired := ExpiredLocks(locks, now)
	require.Len(t, expired, 2)
	assert.Equal(t, "a.go", expired[0].Resource)
	assert.Equal(t, 1, expired[0].MinutesExpired)
	assert.Equal(t, "b.go", expired[1].Resource)
	assert.Equal(t, 5, expired[1].MinutesExpired)

	active := ActiveLocks(locks, now)
	require.Len(t, active, 1)
	assert.Equal(t, "c.go", active[0].Resource)
	assert.Equal(t, "w3", active[0].WorkerID)
}

func TestLockAudit_Empty(t *testing.T) {
	assert.Empty(t, ExpiredLocks(nil, now))
	assert.Empty(t, ActiveLocks(map[string]bus.Lock{}, now))
}
