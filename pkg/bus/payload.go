package bus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Payload is the type-specific body of a Message.
// Concrete variants are selected by the message type in DecodePayload.
type Payload interface {
	// Validate reports a *ValidationError when a required field is missing.
	Validate() error
}

// InitPayload is carried by BUS_INIT.
type InitPayload struct {
	TrackPath string `json:"track_path"`
	Version   string `json:"version"`
}

// Validate implements Payload.
func (p *InitPayload) Validate() error { return nil }

// BlockedPayload is carried by BLOCKED. WaitingFor names the worker (or holder)
// the source cannot proceed without.
type BlockedPayload struct {
	WaitingFor string `json:"waiting_for"`
	Resource   string `json:"resource,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Validate implements Payload.
func (p *BlockedPayload) Validate() error {
	if p.WaitingFor == "" {
		return &ValidationError{Field: "payload.waiting_for", Reason: "required for BLOCKED messages"}
	}
	return nil
}

// HeartbeatPayload is carried by HEARTBEAT.
type HeartbeatPayload struct {
	TaskID      string `json:"task_id,omitempty"`
	ProgressPct int    `json:"progress_pct"`
}

// Validate implements Payload.
func (p *HeartbeatPayload) Validate() error {
	return validateProgress(p.ProgressPct)
}

// UnmarshalJSON implements json.Unmarshaler, accepting a fractional progress_pct.
func (p *HeartbeatPayload) UnmarshalJSON(data []byte) error {
	type plain HeartbeatPayload
	aux := struct {
		*plain
		ProgressPct percent `json:"progress_pct"`
	}{plain: (*plain)(p), ProgressPct: percent(p.ProgressPct)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ProgressPct = int(aux.ProgressPct)
	return nil
}

// TaskPayload is carried by every TASK_* message.
type TaskPayload struct {
	TaskID      string   `json:"task_id,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	ProgressPct int      `json:"progress_pct,omitempty"`
	Files       []string `json:"files,omitempty"`
}

// Validate implements Payload.
func (p *TaskPayload) Validate() error {
	return validateProgress(p.ProgressPct)
}

// UnmarshalJSON implements json.Unmarshaler, accepting a fractional progress_pct.
func (p *TaskPayload) UnmarshalJSON(data []byte) error {
	type plain TaskPayload
	aux := struct {
		*plain
		ProgressPct percent `json:"progress_pct"`
	}{plain: (*plain)(p), ProgressPct: percent(p.ProgressPct)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ProgressPct = int(aux.ProgressPct)
	return nil
}

// LockPayload is carried by LOCK_ACQUIRED and LOCK_RELEASED.
type LockPayload struct {
	Resource  string    `json:"resource"`
	ExpiresAt Timestamp `json:"expires_at"`
}

// Validate implements Payload.
func (p *LockPayload) Validate() error {
	if p.Resource == "" {
		return &ValidationError{Field: "payload.resource", Reason: "required for lock messages"}
	}
	return nil
}

// RawPayload is the free-form payload of custom message types.
type RawPayload map[string]any

// Validate implements Payload.
func (p RawPayload) Validate() error { return nil }

// DecodePayload decodes raw into the payload variant for msgType.
// An absent or null payload decodes to an empty variant, which may then fail Validate.
func DecodePayload(msgType MessageType, raw json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	var p Payload
	switch {
	case msgType == TypeBusInit:
		p = &InitPayload{}
	case msgType == TypeBlocked:
		p = &BlockedPayload{}
	case msgType == TypeHeartbeat:
		p = &HeartbeatPayload{}
	case msgType.IsTask():
		p = &TaskPayload{}
	case msgType == TypeLockAcquired, msgType == TypeLockReleased:
		p = &LockPayload{}
	default:
		raw, err := decodeRaw(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", msgType, err)
		}
		return raw, nil
	}

	if err := json.Unmarshal(trimmed, p); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", msgType, err)
	}
	return p, nil
}

// decodeRaw decodes any JSON object; an absent or null payload is empty.
func decodeRaw(data []byte) (RawPayload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return RawPayload{}, nil
	}
	raw := RawPayload{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// percent decodes any JSON number, rounded to a whole percentage.
type percent int

func (p *percent) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("progress_pct must be a number: %w", err)
	}
	*p = percent(math.Round(f))
	return nil
}

func validateProgress(pct int) error {
	if pct < 0 || pct > 100 {
		return &ValidationError{Field: "progress_pct", Reason: fmt.Sprintf("must be between 0 and 100, got %d", pct)}
	}
	return nil
}
