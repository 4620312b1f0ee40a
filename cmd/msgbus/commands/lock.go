package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/audit"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/spf13/cobra"
)

var (
	lockResource string
	lockWorker   string
	lockTTL      time.Duration
	lockEmit     bool
	lockOutput   string
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Acquire, release, renew or purge resource locks",
	Long: `Manage the track's lock table.

A lock gives one worker exclusive use of a resource (usually a file path) until
it expires. An expired lock can be claimed by anyone; the holder can renew a
live lock to extend it.`,
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire <track>",
	Short: "Take a lock on a resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockAcquire,
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release <track>",
	Short: "Release a lock you hold",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockRelease,
}

var lockRenewCmd = &cobra.Command{
	Use:   "renew <track>",
	Short: "Extend a lock you hold",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockRenew,
}

var lockPurgeCmd = &cobra.Command{
	Use:   "purge <track>",
	Short: "Remove every expired lock",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockPurge,
}

var lockListCmd = &cobra.Command{
	Use:   "list <track>",
	Short: "List live locks",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockList,
}

func init() {
	for _, c := range []*cobra.Command{lockAcquireCmd, lockReleaseCmd, lockRenewCmd} {
		c.Flags().StringVarP(&lockResource, "resource", "r", "", "Resource to lock, e.g. a file path (required)")
		c.Flags().StringVarP(&lockWorker, "worker", "w", "", "Worker id (required)")
		_ = c.MarkFlagRequired("resource")
		_ = c.MarkFlagRequired("worker")
	}
	for _, c := range []*cobra.Command{lockAcquireCmd, lockRenewCmd} {
		c.Flags().DurationVar(&lockTTL, "ttl", 0, "Lock lifetime (default from bus.yml)")
	}
	for _, c := range []*cobra.Command{lockAcquireCmd, lockReleaseCmd} {
		c.Flags().BoolVar(&lockEmit, "emit", false, "Also append LOCK_ACQUIRED/LOCK_RELEASED to the event log")
	}
	lockListCmd.Flags().StringVarP(&lockOutput, "output", "o", "default", "Output format: default or json")

	lockCmd.AddCommand(lockAcquireCmd, lockReleaseCmd, lockRenewCmd, lockPurgeCmd, lockListCmd)
	rootCmd.AddCommand(lockCmd)
}

func lockTTLFor(sess *session) time.Duration {
	if lockTTL > 0 {
		return lockTTL
	}
	return sess.cfg.Locks.DefaultTTL
}

func runLockAcquire(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	lock, err := sess.client.Acquire(ctx, lockResource, lockWorker, lockTTLFor(sess))
	if err != nil {
		return lockError(err)
	}

	if lockEmit {
		msg := bus.NewMessage(bus.TypeLockAcquired, lockWorker, &bus.LockPayload{Resource: lockResource, ExpiresAt: lock.ExpiresAt})
		msg.Timestamp = bus.Timestamp{}
		if err := sess.client.Append(ctx, msg); err != nil {
			return err
		}
	}

	printer.Success("Locked %s for %s until %s\n", lockResource, lockWorker, lock.ExpiresAt)
	return nil
}

func runLockRelease(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.client.Release(ctx, lockResource, lockWorker); err != nil {
		return lockError(err)
	}

	if lockEmit {
		msg := bus.NewMessage(bus.TypeLockReleased, lockWorker, &bus.LockPayload{Resource: lockResource})
		msg.Timestamp = bus.Timestamp{}
		if err := sess.client.Append(ctx, msg); err != nil {
			return err
		}
	}

	printer.Success("Released %s\n", lockResource)
	return nil
}

func runLockRenew(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	lock, err := sess.client.Renew(ctx, lockResource, lockWorker, lockTTLFor(sess))
	if err != nil {
		return lockError(err)
	}
	printer.Success("Renewed %s until %s\n", lockResource, lock.ExpiresAt)
	return nil
}

func runLockPurge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	purged, err := sess.client.PurgeExpired(ctx)
	if err != nil {
		return lockError(err)
	}
	if len(purged) == 0 {
		printer.Info("No expired locks\n")
		return nil
	}
	for _, entry := range purged {
		printer.Info("  %s (was held by %s, expired %s)\n", entry.Resource, entry.WorkerID, entry.ExpiresAt)
	}
	printer.Success("Purged %d expired lock(s)\n", len(purged))
	return nil
}

func runLockList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	locks, corrupt, err := sess.client.Locks(ctx)
	if err != nil {
		return err
	}
	for _, c := range corrupt {
		printer.Warning("Skipping %v\n", c)
	}
	active := audit.ActiveLocks(locks, sess.client.Now())

	switch lockOutput {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if active == nil {
			active = []bus.LockEntry{}
		}
		return enc.Encode(active)
	case "default":
		if len(active) == 0 {
			printer.Info("No active locks\n")
			return nil
		}
		for _, l := range active {
			printer.Info("%-40s %-16s %s\n", l.Resource, l.WorkerID, l.ExpiresAt)
		}
		return nil
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", lockOutput),
			[]string{"Valid formats: default, json"},
		)
	}
}

// lockError formats the lock table's typed errors for the terminal.
func lockError(err error) error {
	switch {
	case bus.IsLockHeld(err):
		return printer.Error("resource is locked", err.Error(), []string{
			"Wait for the holder to release it or for the lock to expire",
			"Check current locks:\n  msgbus lock list <track>",
		})
	case bus.IsNotHolder(err):
		return printer.Error("not the lock holder", err.Error(), nil)
	case bus.IsValidation(err):
		return printer.Error("invalid lock request", err.Error(), nil)
	case bus.IsCorrupt(err):
		return printer.Error("corrupt lock table", err.Error(), []string{
			"Repair the table:\n  msgbus repair <track> locks",
			"Reclaim the entry, which replaces it:\n  msgbus lock acquire <track> --resource=<path> --worker=<id>",
		})
	default:
		return err
	}
}
