// Package history lists and inspects the messages of a track's event log.
package history

import (
	"context"
	"fmt"
	"io"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/filter"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// OutputFormat specifies how to format the message list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated payloads
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete messages as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ListOptions controls ListMessages.
type ListOptions struct {
	Track   string
	Format  OutputFormat
	Filters *filter.Criteria
	Limit   int // keep only the last Limit matches, 0 = all
}

// ListMessages streams the event log, applies the filters and writes the
// matches to w in log order. Corrupt entries are reported to warn with a
// warning and skipped.
func ListMessages(ctx context.Context, client *bus.Client, opts ListOptions, w, warn io.Writer) error {
	if opts.Format != OutputFormatDefault && opts.Format != OutputFormatJSONL {
		return fmt.Errorf("unknown output format: %s", opts.Format)
	}

	var messages []bus.Message
	for msg, err := range client.Messages(ctx) {
		if err != nil {
			if bus.IsCorrupt(err) {
				fmt.Fprintf(warn, "⚠️  Skipping malformed message: %v\n", err)
				continue
			}
			return fmt.Errorf("failed to read event log: %w", err)
		}

		if opts.Filters != nil && !opts.Filters.Matches(&msg) {
			continue
		}
		messages = append(messages, msg)
	}

	if opts.Limit > 0 && len(messages) > opts.Limit {
		messages = messages[len(messages)-opts.Limit:]
	}

	switch opts.Format {
	case OutputFormatJSONL:
		if err := FormatJSONL(w, messages); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		FormatTable(w, messages, opts.Track, client.Now())
	}

	return nil
}
