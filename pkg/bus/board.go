package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/google/uuid"
)

// RecordAssessment stores director's assessment, replacing any earlier one by the
// same director. Other directors' entries are never touched.
func (c *Client) RecordAssessment(ctx context.Context, director string, a Assessment) error {
	if err := c.validateDirector(director); err != nil {
		return err
	}
	if a.Verdict != "" {
		if err := a.Verdict.Validate(); err != nil {
			return &ValidationError{Field: "verdict", Reason: err.Error()}
		}
	}
	if a.AssessedAt.IsZero() {
		a.AssessedAt = At(c.now())
	}
	return c.putBoardEntry(ctx, TableAssessments, director, a)
}

// RecordVote stores director's vote, replacing any earlier vote by the same director.
func (c *Client) RecordVote(ctx context.Context, director string, v Vote) error {
	if err := c.validateDirector(director); err != nil {
		return err
	}
	if err := v.FinalVerdict.Validate(); err != nil {
		return &ValidationError{Field: "final_verdict", Reason: err.Error()}
	}
	if v.VotedAt.IsZero() {
		v.VotedAt = At(c.now())
	}
	return c.putBoardEntry(ctx, TableVotes, director, v)
}

// Assessments returns every director's assessment plus entries that failed to decode.
func (c *Client) Assessments(ctx context.Context) (map[string]Assessment, []*CorruptEntryError, error) {
	return decodeTable[Assessment](ctx, c.store, TableAssessments, nil)
}

// Votes returns every director's vote plus entries that failed to decode.
// Votes with an unknown verdict are returned as-is; Tally counts them as rejections.
func (c *Client) Votes(ctx context.Context) (map[string]Vote, []*CorruptEntryError, error) {
	return decodeTable[Vote](ctx, c.store, TableVotes, nil)
}

// Discuss appends an entry to the board's discussion thread.
// ID and Timestamp are filled in when empty.
func (c *Client) Discuss(ctx context.Context, entry DiscussionEntry) (*DiscussionEntry, error) {
	if entry.ID == "" {
		entry.ID = "disc-" + uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = At(c.now())
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := c.validateDirector(entry.Director); err != nil {
		return nil, err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize discussion entry: %w", err)
	}
	if err := c.store.Append(ctx, StreamDiscussion, data); err != nil {
		return nil, fmt.Errorf("failed to append discussion entry: %w", err)
	}
	return &entry, nil
}

// Discussion iterates the discussion thread in append order.
func (c *Client) Discussion(ctx context.Context) iter.Seq2[DiscussionEntry, error] {
	return decodeStream(ctx, c.store, StreamDiscussion, (*DiscussionEntry).Validate)
}

// ReadDiscussion returns the whole discussion thread along with any corrupt entries.
func (c *Client) ReadDiscussion(ctx context.Context) ([]DiscussionEntry, []*CorruptEntryError, error) {
	return collect(c.Discussion(ctx))
}

// Tally counts APPROVE votes against everything else.
// Consensus thresholds are left to the caller.
func Tally(votes map[string]Vote) (approve, reject int) {
	for _, v := range votes {
		if v.FinalVerdict == VerdictApprove {
			approve++
		}
	}
	return approve, len(votes) - approve
}

func (c *Client) validateDirector(director string) error {
	if director == "" {
		return &ValidationError{Field: "director", Reason: "cannot be empty"}
	}
	if c.seats != nil && !c.seats[director] {
		return &ValidationError{Field: "director", Reason: fmt.Sprintf("%q does not hold a board seat", director)}
	}
	return nil
}

func (c *Client) putBoardEntry(ctx context.Context, table Table, director string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize %s entry: %w", table, err)
	}
	if err := c.store.Put(ctx, table, director, data); err != nil {
		return fmt.Errorf("failed to write %s entry for %s: %w", table, director, err)
	}
	return nil
}
