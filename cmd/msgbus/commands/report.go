package commands

import (
	"context"
	"strings"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/spf13/cobra"
)

var (
	reportWorker     string
	reportStatus     string
	reportTask       string
	reportProgress   int
	reportEmit       bool
	reportWaitingFor string
)

var reportCmd = &cobra.Command{
	Use:   "report <track>",
	Short: "Record a worker's status and heartbeat",
	Long: `Overwrite the worker's entry in the registry and stamp its heartbeat.

With --emit the report is also appended to the event log:
  RUNNING -> HEARTBEAT
  DONE    -> TASK_COMPLETE
  FAILED  -> TASK_FAILED
  BLOCKED -> BLOCKED (requires --waiting-for)`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportWorker, "worker", "w", "", "Worker id (required)")
	reportCmd.Flags().StringVar(&reportStatus, "status", string(bus.StatusRunning), "RUNNING, DONE, FAILED or BLOCKED")
	reportCmd.Flags().StringVar(&reportTask, "task", "", "Task id the worker is on")
	reportCmd.Flags().IntVar(&reportProgress, "progress", 0, "Progress percentage (0-100)")
	reportCmd.Flags().BoolVar(&reportEmit, "emit", false, "Also append the matching event to the log")
	reportCmd.Flags().StringVar(&reportWaitingFor, "waiting-for", "", "Who a BLOCKED worker waits for (with --emit)")
	_ = reportCmd.MarkFlagRequired("worker")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	status := bus.Status(strings.ToUpper(reportStatus))

	var event *bus.Message
	if reportEmit {
		msg, err := reportEvent(status)
		if err != nil {
			return printer.Error("invalid report", err.Error(), nil)
		}
		event = msg
	}

	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	ws, err := sess.client.Report(ctx, reportWorker, status, reportTask, reportProgress)
	if err != nil {
		if bus.IsValidation(err) {
			return printer.Error("invalid report", err.Error(), nil)
		}
		return err
	}

	if event != nil {
		if err := sess.client.Append(ctx, *event); err != nil {
			return err
		}
	}

	printer.Success("%s is %s (%d%%) at %s\n", reportWorker, ws.Status, ws.ProgressPct, ws.LastHeartbeat)
	return nil
}

// reportEvent builds the log entry mirroring a status report. It is validated
// before the registry is touched so a bad --emit writes nothing.
func reportEvent(status bus.Status) (*bus.Message, error) {
	var msg bus.Message
	switch status {
	case bus.StatusRunning:
		msg = bus.NewMessage(bus.TypeHeartbeat, reportWorker, &bus.HeartbeatPayload{TaskID: reportTask, ProgressPct: reportProgress})
	case bus.StatusDone:
		msg = bus.NewMessage(bus.TypeTaskComplete, reportWorker, &bus.TaskPayload{TaskID: reportTask, ProgressPct: reportProgress})
	case bus.StatusFailed:
		msg = bus.NewMessage(bus.TypeTaskFailed, reportWorker, &bus.TaskPayload{TaskID: reportTask, ProgressPct: reportProgress})
	case bus.StatusBlocked:
		msg = bus.NewMessage(bus.TypeBlocked, reportWorker, &bus.BlockedPayload{WaitingFor: reportWaitingFor})
	default:
		return nil, status.Validate()
	}
	msg.Timestamp = bus.Timestamp{}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
