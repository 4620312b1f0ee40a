package history

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// FormatTable writes messages as a formatted table to the provided writer.
// The table includes columns: ID, TYPE, SOURCE, AGE and PAYLOAD (truncated).
// Returns the number of messages formatted.
func FormatTable(w io.Writer, messages []bus.Message, track string, now time.Time) int {
	if len(messages) == 0 {
		fmt.Fprintf(w, "No messages found for track '%s'\n", track)
		return 0
	}

	fmt.Fprintf(w, "Messages for track '%s':\n\n", track)

	fmt.Fprintf(w, "%-12s %-14s %-16s %-8s %s\n",
		"ID", "TYPE", "SOURCE", "AGE", "PAYLOAD")
	fmt.Fprintf(w, "%-12s %-14s %-16s %-8s %s\n",
		"------------", "--------------", "----------------", "--------", "----------------------------------------")

	for i := range messages {
		m := &messages[i]
		fmt.Fprintf(w, "%-12s %-14s %-16s %-8s %s\n",
			formatID(m.ID),
			formatType(m.Type),
			formatSource(m.Source),
			formatAge(m.Timestamp, now),
			formatPayload(m.Payload),
		)
	}

	countMsg := "message"
	if len(messages) != 1 {
		countMsg = "messages"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(messages), countMsg)

	return len(messages)
}

// FormatJSONL writes messages as line-delimited JSON (JSONL) to the provided writer.
// Each line is a complete message in its stored shape, so the output can be
// piped into jq or appended to another queue.jsonl.
func FormatJSONL(w io.Writer, messages []bus.Message) error {
	for i := range messages {
		data, err := json.Marshal(messages[i])
		if err != nil {
			return fmt.Errorf("failed to marshal message to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single message as pretty-printed JSON to the provided writer.
func FormatSingleJSON(w io.Writer, msg *bus.Message) error {
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}

// formatID strips the msg- prefix and keeps the first 8 id characters.
func formatID(id string) string {
	short := strings.TrimPrefix(id, "msg-")
	if len(short) > 8 {
		return short[:8]
	}
	if short == "" {
		return "-"
	}
	return short
}

// formatType truncates custom types that would overflow the column.
func formatType(t bus.MessageType) string {
	s := string(t)
	if len(s) > 14 {
		return s[:11] + "..."
	}
	return s
}

// formatSource renders an empty source as "-".
func formatSource(source string) string {
	if source == "" {
		return "-"
	}
	if len(source) > 16 {
		return source[:13] + "..."
	}
	return source
}

// formatPayload renders the payload as compact JSON truncated to 40 characters.
// Empty payloads return "-".
func formatPayload(payload bus.Payload) string {
	if payload == nil {
		return "-"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "?"
	}

	s := string(data)
	if s == "{}" || s == "null" {
		return "-"
	}
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}

// formatAge formats a timestamp as relative time like "2m ago", "1h ago".
func formatAge(ts bus.Timestamp, now time.Time) string {
	if ts.IsZero() {
		return "-"
	}

	diff := now.Sub(ts.Time)
	if diff < 0 {
		diff = 0
	}

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
