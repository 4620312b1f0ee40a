package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// GetMessage finds a single message by id and writes it as pretty-printed JSON.
// id may be the full id or a unique prefix of it, with or without "msg-".
func GetMessage(ctx context.Context, client *bus.Client, id string, w io.Writer) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid message ID: cannot be empty")
	}

	var found *bus.Message
	for msg, err := range client.Messages(ctx) {
		if err != nil {
			if bus.IsCorrupt(err) {
				continue
			}
			return fmt.Errorf("failed to read event log: %w", err)
		}

		if !matchesID(msg.ID, id) {
			continue
		}
		if msg.ID == id {
			m := msg
			found = &m
			break
		}
		if found != nil {
			return &AmbiguousIDError{Prefix: id}
		}
		m := msg
		found = &m
	}

	if found == nil {
		return &MessageNotFoundError{MessageID: id}
	}

	if err := FormatSingleJSON(w, found); err != nil {
		return fmt.Errorf("failed to format message: %w", err)
	}
	return nil
}

func matchesID(full, want string) bool {
	if strings.HasPrefix(full, want) {
		return true
	}
	return strings.HasPrefix(strings.TrimPrefix(full, "msg-"), want)
}

// MessageNotFoundError represents a specific "message not found" error.
// This allows callers to distinguish not-found errors from other failures.
type MessageNotFoundError struct {
	MessageID string
}

func (e *MessageNotFoundError) Error() string {
	return fmt.Sprintf("message with ID '%s' not found", e.MessageID)
}

// AmbiguousIDError is returned when an id prefix matches more than one message.
type AmbiguousIDError struct {
	Prefix string
}

func (e *AmbiguousIDError) Error() string {
	return fmt.Sprintf("message ID prefix '%s' matches more than one message", e.Prefix)
}

// IsNotFound returns true if the error is a MessageNotFoundError.
func IsNotFound(err error) bool {
	var target *MessageNotFoundError
	return errors.As(err, &target)
}
