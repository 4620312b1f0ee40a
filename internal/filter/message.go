package filter

import (
	"path/filepath"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// Criteria defines filtering criteria for event log messages.
// All filters are ANDed together - a message must match ALL criteria to pass.
type Criteria struct {
	Since    time.Time // inclusive lower bound on timestamp, zero = no filter
	Until    time.Time // inclusive upper bound on timestamp, zero = no filter
	TypeGlob string    // Glob pattern for message type (e.g. "TASK_*"), empty = no filter
	Source   string    // Exact match on source worker, empty = no filter
}

// Matches returns true if the message matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
// A message without a timestamp never passes a time filter.
func (c *Criteria) Matches(msg *bus.Message) bool {
	if !c.Since.IsZero() || !c.Until.IsZero() {
		if msg.Timestamp.IsZero() {
			return false
		}
		if !c.Since.IsZero() && msg.Timestamp.Before(c.Since) {
			return false
		}
		if !c.Until.IsZero() && msg.Timestamp.After(c.Until) {
			return false
		}
	}

	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, string(msg.Type))
		if err != nil || !matched {
			return false
		}
	}

	if c.Source != "" && msg.Source != c.Source {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return !c.Since.IsZero() ||
		!c.Until.IsZero() ||
		c.TypeGlob != "" ||
		c.Source != ""
}

// Validate reports a malformed type glob before any message is read.
func (c *Criteria) Validate() error {
	if c.TypeGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.TypeGlob, "")
	return err
}
