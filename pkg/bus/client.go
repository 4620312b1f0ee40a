package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"
)

// DefaultQuorum is the number of director seats on the board.
const DefaultQuorum = 5

// maxCASAttempts bounds compare-and-swap retry loops before ErrContention.
const maxCASAttempts = 16

// Client provides the coordination operations of one track over a Store.
// It keeps no state between calls beyond its configuration and is safe for
// concurrent use by multiple goroutines.
type Client struct {
	store  Store
	now    func() time.Time
	quorum int
	seats  map[string]bool
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the wall clock used for timestamps and lock expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithQuorum sets the number of director seats. Values below 1 are ignored.
func WithQuorum(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.quorum = n
		}
	}
}

// WithSeats restricts board writes to the named directors.
// With no seats configured any director id is accepted.
func WithSeats(directors ...string) Option {
	return func(c *Client) {
		if len(directors) == 0 {
			return
		}
		c.seats = make(map[string]bool, len(directors))
		for _, d := range directors {
			c.seats[d] = true
		}
	}
}

// NewClient creates a client over store.
func NewClient(store Store, opts ...Option) *Client {
	c := &Client{
		store:  store,
		now:    time.Now,
		quorum: DefaultQuorum,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Client) Store() Store {
	return c.store
}

// Quorum returns the number of director seats.
func (c *Client) Quorum() int {
	return c.quorum
}

// Now returns the client's current time in UTC.
func (c *Client) Now() time.Time {
	return c.now().UTC()
}

// decodeTable decodes every entry of a table, collecting undecodable entries
// instead of failing the whole read.
func decodeTable[T any](ctx context.Context, store Store, table Table, validate func(*T) error) (map[string]T, []*CorruptEntryError, error) {
	raw, err := store.Entries(ctx, table)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", table, err)
	}

	out := make(map[string]T, len(raw))
	var problems []*CorruptEntryError
	for key, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			problems = append(problems, &CorruptEntryError{Source: string(table), Key: key, Err: err})
			continue
		}
		if validate != nil {
			if err := validate(&v); err != nil {
				problems = append(problems, &CorruptEntryError{Source: string(table), Key: key, Err: err})
				continue
			}
		}
		out[key] = v
	}
	return out, problems, nil
}

// decodeStream lazily decodes a stream. Undecodable records are yielded as
// *CorruptEntryError and iteration continues; store errors end it.
func decodeStream[T any](ctx context.Context, store Store, stream Stream, validate func(*T) error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for rec, err := range store.Records(ctx, stream) {
			if err != nil {
				yield(zero, fmt.Errorf("failed to read %s: %w", stream, err))
				return
			}

			var v T
			if err := json.Unmarshal(rec.Data, &v); err != nil {
				if !yield(zero, &CorruptEntryError{Source: string(stream), Line: rec.Line, Err: err}) {
					return
				}
				continue
			}
			if validate != nil {
				if err := validate(&v); err != nil {
					if !yield(zero, &CorruptEntryError{Source: string(stream), Line: rec.Line, Err: err}) {
						return
					}
					continue
				}
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// collect drains a decoded stream into healthy values and corrupt entries.
func collect[T any](seq iter.Seq2[T, error]) ([]T, []*CorruptEntryError, error) {
	var out []T
	var problems []*CorruptEntryError
	for v, err := range seq {
		if err != nil {
			if corrupt, ok := err.(*CorruptEntryError); ok {
				problems = append(problems, corrupt)
				continue
			}
			return out, problems, err
		}
		out = append(out, v)
	}
	return out, problems, nil
}
