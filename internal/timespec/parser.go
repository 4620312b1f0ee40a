package timespec

import (
	"fmt"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// Parse parses a time specification relative to now.
// Supports two formats:
//   - Go duration format: "1h", "30m", "1h30m", "2h45m30s"
//   - ISO-8601 timestamps: "2025-10-29T13:00:00Z", "2025-10-29T13:00:00.123456"
//
// Duration specifications are subtracted from now: "1h" means "1 hour ago".
// Timestamps without a zone are read as UTC, like the ones in the event log.
func Parse(expr string, now time.Time) (time.Time, error) {
	if expr == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := bus.ParseTimestamp(expr); err == nil {
		return t, nil
	}

	if d, err := time.ParseDuration(expr); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("invalid time specification: %s (duration must not be negative)", expr)
		}
		return now.Add(-d).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or ISO-8601 like '2025-10-29T13:00:00Z')", expr)
}

// ParseRange parses both --since and --until flags into a time range.
// Zero values indicate "no bound" for that end of the range.
//
// Validates that since < until if both are specified.
func ParseRange(since, until string, now time.Time) (time.Time, time.Time, error) {
	var sinceT, untilT time.Time
	var err error

	if since != "" {
		sinceT, err = Parse(since, now)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		untilT, err = Parse(until, now)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if !sinceT.IsZero() && !untilT.IsZero() && !sinceT.Before(untilT) {
		return time.Time{}, time.Time{}, fmt.Errorf("--since must be before --until")
	}

	return sinceT, untilT, nil
}
