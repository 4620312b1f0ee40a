package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp is a UTC instant serialised as an ISO-8601 string.
// Reading is lenient so that files written by other tools (naive timestamps,
// microsecond precision, explicit offsets) are accepted.
type Timestamp struct {
	time.Time
}

// At wraps t as a UTC Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// timestampLayouts are tried in order by ParseTimestamp.
// Layouts without a zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp into a UTC time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: expected ISO-8601", s)
}

// String formats the timestamp as RFC3339 with nanosecond precision, or "" when zero.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler. null and "" decode to the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Lock is a claim on a resource by a single worker until ExpiresAt.
// The resource itself is the key the lock is stored under.
type Lock struct {
	WorkerID   string    `json:"worker_id"`
	AcquiredAt Timestamp `json:"acquired_at"`
	ExpiresAt  Timestamp `json:"expires_at"`
}

// Live reports whether the lock is still authoritative at now (now < expires_at).
func (l Lock) Live(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.Before(l.ExpiresAt.Time)
}

// Expired reports whether the lock lapsed strictly before now.
// A lock without an expiry is neither live nor expired.
func (l Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && l.ExpiresAt.Before(now)
}

// LockEntry pairs a lock with the resource it protects.
type LockEntry struct {
	Resource string `json:"resource"`
	Lock
}

// Status is the lifecycle state a worker reports for itself.
type Status string

const (
	// StatusRunning means the worker is actively working its task and heartbeating.
	StatusRunning Status = "RUNNING"

	// StatusDone means the worker finished its task.
	StatusDone Status = "DONE"

	// StatusFailed means the worker gave up on its task.
	StatusFailed Status = "FAILED"

	// StatusBlocked means the worker is waiting on another worker or resource.
	StatusBlocked Status = "BLOCKED"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusRunning, StatusDone, StatusFailed, StatusBlocked:
		return nil
	default:
		return fmt.Errorf("unknown worker status: %q", s)
	}
}

// Terminal reports whether the worker will not act again (DONE or FAILED).
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// WorkerStatus is the latest report of a single worker.
type WorkerStatus struct {
	Status        Status    `json:"status"`
	TaskID        string    `json:"task_id"`
	ProgressPct   int       `json:"progress_pct"`
	LastHeartbeat Timestamp `json:"last_heartbeat"`
}

// UnmarshalJSON implements json.Unmarshaler, accepting a fractional progress_pct.
func (ws *WorkerStatus) UnmarshalJSON(data []byte) error {
	type plain WorkerStatus
	aux := struct {
		*plain
		ProgressPct percent `json:"progress_pct"`
	}{plain: (*plain)(ws), ProgressPct: percent(ws.ProgressPct)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ws.ProgressPct = int(aux.ProgressPct)
	return nil
}

// Verdict is a director's decision on the track.
type Verdict string

const (
	// VerdictApprove accepts the track's work.
	VerdictApprove Verdict = "APPROVE"

	// VerdictReject sends the track's work back.
	VerdictReject Verdict = "REJECT"
)

// Validate checks if the Verdict is a valid enum value.
func (v Verdict) Validate() error {
	switch v {
	case VerdictApprove, VerdictReject:
		return nil
	default:
		return fmt.Errorf("unknown verdict: %q", v)
	}
}

// Assessment is a director's written review, recorded before voting.
type Assessment struct {
	Verdict    Verdict   `json:"verdict,omitempty"` // preliminary leaning, optional
	Summary    string    `json:"summary"`
	Concerns   []string  `json:"concerns,omitempty"`
	AssessedAt Timestamp `json:"assessed_at"`
}

// Vote is a director's final decision.
type Vote struct {
	FinalVerdict Verdict   `json:"final_verdict"`
	Rationale    string    `json:"rationale,omitempty"`
	Conditions   []string  `json:"conditions,omitempty"`
	VotedAt      Timestamp `json:"voted_at"`
}

// DiscussionEntry is one post on the board's append-only discussion thread.
type DiscussionEntry struct {
	ID        string    `json:"id"`
	Director  string    `json:"director"`
	Message   string    `json:"message"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
}

// Validate checks the entry has an author and a body.
func (d *DiscussionEntry) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Reason: "cannot be empty"}
	}
	if d.Director == "" {
		return &ValidationError{Field: "director", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(d.Message) == "" {
		return &ValidationError{Field: "message", Reason: "cannot be empty"}
	}
	return nil
}
