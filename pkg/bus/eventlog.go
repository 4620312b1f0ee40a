package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
)

// Append validates msg and adds it to the end of the event log.
// A missing timestamp is filled with the client's clock. Nothing is written when
// validation fails.
func (c *Client) Append(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = At(c.now())
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	if err := c.store.Append(ctx, StreamQueue, data); err != nil {
		return fmt.Errorf("failed to append message %s: %w", msg.ID, err)
	}
	return nil
}

// Messages iterates the event log in append order. The sequence is lazy and
// restartable: every range over it re-reads the store from the beginning.
// Entries that are not JSON objects or lack an id or type are yielded as
// *CorruptEntryError and iteration continues.
func (c *Client) Messages(ctx context.Context) iter.Seq2[Message, error] {
	return decodeStream(ctx, c.store, StreamQueue, (*Message).validateHeader)
}

// ReadAll returns the whole event log along with any corrupt entries.
func (c *Client) ReadAll(ctx context.Context) ([]Message, []*CorruptEntryError, error) {
	return collect(c.Messages(ctx))
}
