package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/filestore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair <track> <table>",
	Short: "Recover a lock, worker or board table file that no longer parses",
	Long: `Recover a corrupt table file of the file backend.

The broken file is moved to .message-bus/quarantine/, then the last good copy
(<file>.bak) is restored. Without a usable backup the table is reset to {}.
A healthy table is left alone.

Tables: locks, workers, assessments, votes`,
	Args: cobra.ExactArgs(2),
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	table, err := parseTable(args[1])
	if err != nil {
		return err
	}

	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	fs, ok := sess.store.(*filestore.Store)
	if !ok {
		return printer.Error(
			"repair is only available for the file backend",
			fmt.Sprintf("This track uses the %s backend.", sess.cfg.Backend),
			nil,
		)
	}

	result, err := fs.Repair(ctx, table)
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}
	if result == nil {
		printer.Success("%s is healthy, nothing to repair\n", table)
		return nil
	}

	printer.Info("Quarantined corrupt file to %s\n", result.QuarantinedTo)
	if result.RestoredFrom != "" {
		printer.Success("Restored %s from %s\n", table, result.RestoredFrom)
	} else {
		printer.Warning("No usable backup, %s was reset to an empty table\n", table)
	}
	return nil
}

func parseTable(name string) (bus.Table, error) {
	for _, t := range bus.Tables {
		if string(t) == strings.ToLower(name) {
			return t, nil
		}
	}
	names := make([]string, len(bus.Tables))
	for i, t := range bus.Tables {
		names[i] = string(t)
	}
	return "", printer.Error(
		"unknown table",
		fmt.Sprintf("Unknown table: %s", name),
		[]string{"Valid tables: " + strings.Join(names, ", ")},
	)
}
