package commands

import (
	"fmt"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// Global overrides for values normally read from bus.yml
var (
	backendFlag   string
	redisURLFlag  string
	trackNameFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "msgbus",
	Short: "msgbus - coordination bus for parallel agents working a track",
	Long: `msgbus coordinates independent agents working on the same track.

Agents append events to a shared log, take time-limited locks on files,
report their status, and vote as a board of directors. The monitor shows
the combined state, including stale workers, expired locks and deadlocks.

State lives in <track>/.message-bus/ by default, or in Redis with --backend=redis.`,
	Version: version,
	// Show help rather than silently succeeding when no subcommand is given
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		printer.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Storage backend: file or redis (overrides bus.yml)")
	rootCmd.PersistentFlags().StringVar(&redisURLFlag, "redis-url", "", "Redis URL for the redis backend (overrides bus.yml)")
	rootCmd.PersistentFlags().StringVar(&trackNameFlag, "track-name", "", "Redis key namespace (defaults to the track directory name)")
}
