package commands

import (
	"context"
	"fmt"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/config"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/redisstore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/scaffold"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <track>",
	Short: "Initialize the message bus for a track",
	Long: `Initialize the message bus inside an existing track directory.

Creates <track>/.message-bus/ with an empty event log, lock table, worker
registry and board, a bus.yml with default settings, and a single BUS_INIT
event. Files that already exist are left untouched, so init is safe to re-run.

With --backend=redis the event log and tables live in Redis under the track
name; the directory and bus.yml are still created locally.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	track := args[0]

	if err := scaffold.CheckTrack(track); err != nil {
		return printer.ErrorWithContext(
			"track not found",
			err.Error(),
			map[string]string{"Track": track},
			[]string{"Create the track directory first, then run init again"},
		)
	}

	cfg, err := loadConfig(track)
	if err != nil {
		return err
	}

	opts := scaffold.Options{TrackPath: track, Config: cfg}
	if cfg.Backend == config.BackendRedis {
		var store *redisstore.Store
		store, err = openRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Redis = store
	}

	result, err := scaffold.Initialize(ctx, opts)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("Message bus initialized at: %s\n", result.Paths.Root)
	printer.Info("\nCreated structure:\n")
	printer.Info("  %s/\n", result.Paths.Root)
	for _, line := range scaffold.Layout() {
		printer.Info("  %s\n", line)
	}
	if result.Backend == config.BackendRedis {
		printer.Info("\nBackend: redis (%s, track %q)\n", cfg.Redis.URL, cfg.TrackName)
	}
	if !result.InitWritten {
		printer.Warning("Message bus already existed; existing state was kept\n")
	}
	return nil
}
