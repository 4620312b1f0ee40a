package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/spf13/cobra"
)

var (
	sendType       string
	sendSource     string
	sendPayload    string
	sendWaitingFor string
	sendResource   string
	sendReason     string
	sendTask       string
	sendSummary    string
	sendProgress   int
)

var sendCmd = &cobra.Command{
	Use:   "send <track>",
	Short: "Append a message to the event log",
	Long: `Append one message to the track's event log.

The payload is built from --payload (a JSON object) and then the shortcut flags,
which override keys of the same name. Known types are checked for their
required fields: BLOCKED needs --waiting-for, TASK_* needs --task.

Examples:
  msgbus send <track> --type=TASK_CLAIMED --source=worker-1 --task=1.2
  msgbus send <track> --type=BLOCKED --source=worker-1 --waiting-for=worker-2
  msgbus send <track> --type=REVIEW_READY --source=worker-3 --payload='{"pr":42}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendType, "type", "t", "", "Message type (required)")
	sendCmd.Flags().StringVarP(&sendSource, "source", "s", "", "Sending agent id (required)")
	sendCmd.Flags().StringVar(&sendPayload, "payload", "", "Payload as a JSON object")
	sendCmd.Flags().StringVar(&sendWaitingFor, "waiting-for", "", "payload.waiting_for (BLOCKED)")
	sendCmd.Flags().StringVar(&sendResource, "resource", "", "payload.resource")
	sendCmd.Flags().StringVar(&sendReason, "reason", "", "payload.reason")
	sendCmd.Flags().StringVar(&sendTask, "task", "", "payload.task_id")
	sendCmd.Flags().StringVar(&sendSummary, "summary", "", "payload.summary")
	sendCmd.Flags().IntVar(&sendProgress, "progress", 0, "payload.progress_pct (0-100)")
	_ = sendCmd.MarkFlagRequired("type")
	_ = sendCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fields := map[string]any{}
	if sendPayload != "" {
		if err := json.Unmarshal([]byte(sendPayload), &fields); err != nil {
			return printer.Error(
				"invalid payload",
				fmt.Sprintf("--payload must be a JSON object: %v", err),
				[]string{`Example: --payload='{"task_id":"1.2"}'`},
			)
		}
	}
	setIfChanged(cmd, fields, "waiting-for", "waiting_for", sendWaitingFor)
	setIfChanged(cmd, fields, "resource", "resource", sendResource)
	setIfChanged(cmd, fields, "reason", "reason", sendReason)
	setIfChanged(cmd, fields, "task", "task_id", sendTask)
	setIfChanged(cmd, fields, "summary", "summary", sendSummary)
	setIfChanged(cmd, fields, "progress", "progress_pct", sendProgress)

	msgType := bus.MessageType(sendType)
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	payload, err := bus.DecodePayload(msgType, raw)
	if err != nil {
		return printer.Error("invalid payload", err.Error(), nil)
	}

	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	msg := bus.NewMessage(msgType, sendSource, payload)
	msg.Timestamp = bus.Timestamp{}
	if err := sess.client.Append(ctx, msg); err != nil {
		if bus.IsValidation(err) {
			return printer.Error("message rejected", err.Error(), nil)
		}
		return err
	}

	printer.Success("Appended %s %s from %s\n", msg.Type, msg.ID, msg.Source)
	return nil
}

// setIfChanged copies a flag into the payload only when the user set it.
func setIfChanged(cmd *cobra.Command, fields map[string]any, flag, key string, value any) {
	if cmd.Flags().Changed(flag) {
		fields[key] = value
	}
}
