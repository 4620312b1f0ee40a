package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Report overwrites worker's status entry and stamps last_heartbeat with now.
// Invalid input fails with *ValidationError and nothing is written.
func (c *Client) Report(ctx context.Context, worker string, status Status, taskID string, progressPct int) (*WorkerStatus, error) {
	if worker == "" {
		return nil, &ValidationError{Field: "worker", Reason: "cannot be empty"}
	}
	if err := status.Validate(); err != nil {
		return nil, &ValidationError{Field: "status", Reason: err.Error()}
	}
	if err := validateProgress(progressPct); err != nil {
		return nil, err
	}

	ws := &WorkerStatus{
		Status:        status,
		TaskID:        taskID,
		ProgressPct:   progressPct,
		LastHeartbeat: At(c.now()),
	}
	data, err := json.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize worker status: %w", err)
	}

	if err := c.store.Put(ctx, TableWorkers, worker, data); err != nil {
		return nil, fmt.Errorf("failed to write status for %s: %w", worker, err)
	}
	return ws, nil
}

// Worker returns the latest status of worker, or ErrKeyNotFound.
func (c *Client) Worker(ctx context.Context, worker string) (*WorkerStatus, error) {
	data, err := c.store.Get(ctx, TableWorkers, worker)
	if err != nil {
		return nil, err
	}
	var ws WorkerStatus
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, &CorruptEntryError{Source: string(TableWorkers), Key: worker, Err: err}
	}
	return &ws, nil
}

// AllStatuses returns the current worker -> status mapping plus entries that failed
// to decode.
func (c *Client) AllStatuses(ctx context.Context) (map[string]WorkerStatus, []*CorruptEntryError, error) {
	return decodeTable(ctx, c.store, TableWorkers, func(ws *WorkerStatus) error {
		return ws.Status.Validate()
	})
}
