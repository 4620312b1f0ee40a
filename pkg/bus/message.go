package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies what a message announces and selects its payload variant.
// Agents may use custom types beyond the ones declared here.
type MessageType string

const (
	// TypeBusInit is written once when the track's bus is initialised.
	TypeBusInit MessageType = "BUS_INIT"

	// TypeBlocked announces that the source is waiting for another worker.
	TypeBlocked MessageType = "BLOCKED"

	// TypeUnblocked withdraws the source's most recent BLOCKED message.
	TypeUnblocked MessageType = "UNBLOCKED"

	// TypeHeartbeat is a liveness ping carrying progress.
	TypeHeartbeat MessageType = "HEARTBEAT"

	// TypeTaskClaimed through TypeTaskFailed form the TASK_* family.
	TypeTaskClaimed  MessageType = "TASK_CLAIMED"
	TypeTaskStarted  MessageType = "TASK_STARTED"
	TypeTaskProgress MessageType = "TASK_PROGRESS"
	TypeTaskComplete MessageType = "TASK_COMPLETE"
	TypeTaskFailed   MessageType = "TASK_FAILED"

	// TypeLockAcquired and TypeLockReleased mirror lock table changes into the log.
	TypeLockAcquired MessageType = "LOCK_ACQUIRED"
	TypeLockReleased MessageType = "LOCK_RELEASED"
)

// IsTask reports whether the type belongs to the TASK_* family.
func (t MessageType) IsTask() bool {
	return strings.HasPrefix(string(t), "TASK_")
}

// Message is a single immutable entry of the event log.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Source    string      `json:"source"`
	Timestamp Timestamp   `json:"timestamp"`
	Payload   Payload     `json:"payload"`
}

// NewMessage builds a message with a fresh id and the current time.
func NewMessage(msgType MessageType, source string, payload Payload) Message {
	return Message{
		ID:        NewMessageID(),
		Type:      msgType,
		Source:    source,
		Timestamp: At(time.Now()),
		Payload:   payload,
	}
}

// NewMessageID returns a unique message id of the form msg-<uuid>.
func NewMessageID() string {
	return "msg-" + uuid.New().String()
}

// wireMessage is the persisted shape of a Message; the payload is decoded
// separately once the type is known.
type wireMessage struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Source    string          `json:"source"`
	Timestamp Timestamp       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON implements json.Marshaler. A nil payload is written as {}.
func (m Message) MarshalJSON() ([]byte, error) {
	payload := json.RawMessage("{}")
	if m.Payload != nil {
		data, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", m.Type, err)
		}
		payload = data
	}
	return json.Marshal(wireMessage{
		ID:        m.ID,
		Type:      m.Type,
		Source:    m.Source,
		Timestamp: m.Timestamp,
		Payload:   payload,
	})
}

// UnmarshalJSON implements json.Unmarshaler, decoding the payload into the
// variant that matches the message type. A payload object that does not fit its
// variant is kept as a RawPayload.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	payload, err := DecodePayload(w.Type, w.Payload)
	if err != nil {
		raw, rawErr := decodeRaw(w.Payload)
		if rawErr != nil {
			return err
		}
		payload = raw
	}
	*m = Message{
		ID:        w.ID,
		Type:      w.Type,
		Source:    w.Source,
		Timestamp: w.Timestamp,
		Payload:   payload,
	}
	return nil
}

// Validate checks the message is complete enough to append.
// The payload is round-tripped through its wire form so that a free-form payload
// attached to a typed message is held to the typed variant's requirements.
func (m *Message) Validate() error {
	if err := m.validateHeader(); err != nil {
		return err
	}

	raw := json.RawMessage("{}")
	if m.Payload != nil {
		data, err := json.Marshal(m.Payload)
		if err != nil {
			return &ValidationError{Field: "payload", Reason: err.Error()}
		}
		raw = data
	}
	payload, err := DecodePayload(m.Type, raw)
	if err != nil {
		return &ValidationError{Field: "payload", Reason: err.Error()}
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	m.Payload = payload
	return nil
}

// validateHeader checks the fields every logged message carries. Variant
// requirements apply on append only, so a reader keeps what other writers logged.
func (m *Message) validateHeader() error {
	if strings.TrimSpace(m.ID) == "" {
		return &ValidationError{Field: "id", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(string(m.Type)) == "" {
		return &ValidationError{Field: "type", Reason: "cannot be empty"}
	}
	return nil
}

// Blocked returns the BLOCKED payload if the message carries one.
func (m *Message) Blocked() (*BlockedPayload, bool) {
	if m.Type != TypeBlocked {
		return nil, false
	}
	p, ok := m.Payload.(*BlockedPayload)
	return p, ok
}
