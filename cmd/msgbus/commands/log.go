package commands

import (
	"context"
	"fmt"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/filter"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/history"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	logOutputFormat string
	logSince        string
	logUntil        string
	logType         string
	logSource       string
	logLimit        int
)

var logCmd = &cobra.Command{
	Use:   "log <track> [MESSAGE_ID]",
	Short: "Inspect the event log with filtering",
	Long: `Inspect the track's event log in list or get mode.

List Mode (no MESSAGE_ID):
  Displays messages matching filters as a table or JSONL stream, oldest first.

Get Mode (with MESSAGE_ID):
  Displays a single message as pretty-printed JSON.
  Supports short IDs (e.g., "3f2a" instead of "msg-3f2a...").

Output Formats (list mode only):
  default - Human-readable table with ID, Type, Source, Age and Payload
  jsonl   - Line-delimited JSON, one message per line

Time Filters (list mode only):
  --since  - Show messages at or after this time
  --until  - Show messages at or before this time

Content Filters (list mode only):
  --type   - Filter by message type (glob pattern: "TASK_*", "LOCK_*")
  --source - Filter by sending agent (exact match)

Examples:
  # Everything worker-2 reported in the last hour
  msgbus log <track> --source=worker-2 --since=1h

  # Task lifecycle events as JSONL for jq
  msgbus log <track> --type="TASK_*" --output=jsonl | jq .payload.task_id

  # One message by short ID
  msgbus log <track> 3f2a`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")

	// Time-based filters
	logCmd.Flags().StringVar(&logSince, "since", "", "Show messages after time (duration or ISO-8601)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "Show messages before time (duration or ISO-8601)")

	// Content-based filters
	logCmd.Flags().StringVar(&logType, "type", "", "Filter by message type (glob pattern)")
	logCmd.Flags().StringVar(&logSource, "source", "", "Filter by source (exact match)")
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "Show only the last N matches (0 = all)")

	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	isGetMode := len(args) > 1

	var outputFormat history.OutputFormat
	if !isGetMode {
		switch logOutputFormat {
		case "default":
			outputFormat = history.OutputFormatDefault
		case "jsonl":
			outputFormat = history.OutputFormatJSONL
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", logOutputFormat),
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	if isGetMode {
		shortID := args[1]
		err := history.GetMessage(ctx, sess.client, shortID, cmd.OutOrStdout())
		if history.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("message with ID '%s' not found", shortID),
				"No message in the event log has that ID or ID prefix.",
				[]string{fmt.Sprintf("List all messages:\n  msgbus log %s", args[0])},
			)
		}
		if err != nil {
			return printer.Error("cannot show message", err.Error(), []string{"Use a longer ID prefix"})
		}
		return nil
	}

	since, until, err := timespec.ParseRange(logSince, logUntil, sess.client.Now())
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or ISO-8601 like '2025-10-29T13:00:00Z'"},
		)
	}

	criteria := &filter.Criteria{
		Since:    since,
		Until:    until,
		TypeGlob: logType,
		Source:   logSource,
	}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid type filter", err.Error(), []string{`Use a glob like "TASK_*"`})
	}

	opts := history.ListOptions{
		Track:   sess.track,
		Format:  outputFormat,
		Filters: criteria,
		Limit:   logLimit,
	}
	if err := history.ListMessages(ctx, sess.client, opts, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	return nil
}
