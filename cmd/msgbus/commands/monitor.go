package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/monitor"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/watch"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	monitorWatch    bool
	monitorInterval time.Duration
	monitorRecent   int
	monitorStale    time.Duration
	monitorOutput   string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <track>",
	Short: "Show the current state of a track's message bus",
	Long: `Show message counts by type, worker statuses, stale workers, active and
expired locks, any deadlock cycle, the most recent messages and the board tally.

Output Formats:
  text - Human-readable report (default)
  json - One JSON document per refresh

With --watch the report is refreshed every --interval, and immediately when the
store reports a change, until interrupted.

Examples:
  msgbus monitor conductor/tracks/feature-xyz_20260201
  msgbus monitor conductor/tracks/feature-xyz_20260201 --watch --interval=2s
  msgbus monitor conductor/tracks/feature-xyz_20260201 --output=json | jq .deadlock`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVarP(&monitorWatch, "watch", "w", false, "Keep refreshing until interrupted")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Refresh interval in watch mode (default from bus.yml)")
	monitorCmd.Flags().IntVar(&monitorRecent, "recent", 0, "Number of recent messages to show (default from bus.yml)")
	monitorCmd.Flags().DurationVar(&monitorStale, "stale-after", 0, "Heartbeat age after which a RUNNING worker is stale (default from bus.yml)")
	monitorCmd.Flags().StringVarP(&monitorOutput, "output", "o", "text", "Output format: text or json")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var render watch.Renderer
	switch monitorOutput {
	case "text":
		render = func(w io.Writer, snap *monitor.Snapshot) error {
			monitor.Render(w, snap)
			return nil
		}
	case "json":
		render = monitor.RenderJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", monitorOutput),
			[]string{"Valid formats: text, json"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	opts := monitor.Options{
		Track:          sess.track,
		StaleThreshold: sess.cfg.Monitor.StaleThreshold,
		Recent:         sess.cfg.Monitor.Recent,
	}
	if monitorStale > 0 {
		opts.StaleThreshold = monitorStale
	}
	if monitorRecent > 0 {
		opts.Recent = monitorRecent
	}
	load := func(ctx context.Context) (*monitor.Snapshot, error) {
		return monitor.Load(ctx, sess.client, opts)
	}

	out := cmd.OutOrStdout()
	if !monitorWatch {
		snap, err := load(ctx)
		if err != nil {
			return fmt.Errorf("failed to read message bus: %w", err)
		}
		return render(out, snap)
	}

	interval := sess.cfg.Monitor.Interval
	if monitorInterval > 0 {
		interval = monitorInterval
	}
	printer.Info("Watching message bus at: %s\n", sess.paths.Root)
	return watch.Run(ctx, watch.Config{
		Load:     load,
		Render:   render,
		Interval: interval,
		Notifier: sess.notifier(),
		Clear:    monitorOutput == "text" && isTerminal(out),
	}, out)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
