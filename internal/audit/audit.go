// Package audit derives liveness findings from registry and lock snapshots.
// Every function is pure: it reads the maps it is given and never mutates a store.
package audit

import (
	"sort"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// DefaultStaleThreshold is how long a RUNNING worker may go without a heartbeat.
const DefaultStaleThreshold = 10 * time.Minute

// StaleWorker is a RUNNING worker whose last heartbeat is older than the threshold.
type StaleWorker struct {
	WorkerID      string        `json:"worker_id"`
	TaskID        string        `json:"task_id"`
	LastHeartbeat bus.Timestamp `json:"last_heartbeat"`
	MinutesStale  int           `json:"minutes_stale"`
}

// ExpiredLock is a lock whose expiry lies strictly in the past.
type ExpiredLock struct {
	Resource       string        `json:"resource"`
	WorkerID       string        `json:"worker_id"`
	ExpiredAt      bus.Timestamp `json:"expired_at"`
	MinutesExpired int           `json:"minutes_expired"`
}

// StaleWorkers returns RUNNING workers with now - last_heartbeat > threshold,
// sorted by worker id. Workers that never heartbeated are not reported.
// A threshold <= 0 uses DefaultStaleThreshold.
func StaleWorkers(statuses map[string]bus.WorkerStatus, threshold time.Duration, now time.Time) []StaleWorker {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}

	var stale []StaleWorker
	for id, ws := range statuses {
		if ws.Status != bus.StatusRunning || ws.LastHeartbeat.IsZero() {
			continue
		}
		age := now.Sub(ws.LastHeartbeat.Time)
		if age <= threshold {
			continue
		}
		stale = append(stale, StaleWorker{
			WorkerID:      id,
			TaskID:        ws.TaskID,
			LastHeartbeat: ws.LastHeartbeat,
			MinutesStale:  int(age / time.Minute),
		})
	}

	sort.Slice(stale, func(i, j int) bool { return stale[i].WorkerID < stale[j].WorkerID })
	return stale
}

// ExpiredLocks returns locks with expires_at < now, sorted by resource.
func ExpiredLocks(locks map[string]bus.Lock, now time.Time) []ExpiredLock {
	var expired []ExpiredLock
	for resource, lock := range locks {
		if !lock.Expired(now) {
			continue
		}
		expired = append(expired, ExpiredLock{
			Resource:       resource,
			WorkerID:       lock.WorkerID,
			ExpiredAt:      lock.ExpiresAt,
			MinutesExpired: int(now.Sub(lock.ExpiresAt.Time) / time.Minute),
		})
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].Resource < expired[j].Resource })
	return expired
}

// ActiveLocks returns locks with now < expires_at, sorted by resource.
func ActiveLocks(locks map[string]bus.Lock, now time.Time) []bus.LockEntry {
	var active []bus.LockEntry
	for resource, lock := range locks {
		if lock.Live(now) {
			active = append(active, bus.LockEntry{Resource: resource, Lock: lock})
		}
	}

	sort.Slice(active, func(i, j int) bool { return active[i].Resource < active[j].Resource })
	return active
}
