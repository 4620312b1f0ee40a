// Package watch runs the monitor's refresh loop.
package watch

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/monitor"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 5 * time.Second

const clearScreen = "\033[H\033[2J"

// Loader produces a fresh snapshot on every call.
type Loader func(ctx context.Context) (*monitor.Snapshot, error)

// Renderer writes one snapshot.
type Renderer func(w io.Writer, snap *monitor.Snapshot) error

// Config controls Run.
type Config struct {
	Load     Loader
	Render   Renderer
	Interval time.Duration

	// Notifier, when set, wakes the loop as soon as the store changes
	// instead of waiting for the next tick.
	Notifier bus.Notifier

	// Clear redraws from the top of the terminal before each render.
	Clear bool
}

// Run renders a snapshot immediately and then again on every tick or change
// notification until ctx is cancelled. A failed refresh is logged and retried
// on the next tick. Run returns nil on cancellation.
func Run(ctx context.Context, cfg Config, w io.Writer) error {
	if cfg.Load == nil || cfg.Render == nil {
		return fmt.Errorf("watch requires a loader and a renderer")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var changes <-chan struct{}
	if cfg.Notifier != nil {
		ch, err := cfg.Notifier.Changes(ctx)
		if err != nil {
			log.Printf("[Watch] Change notifications unavailable, polling only: %v", err)
		} else {
			changes = ch
		}
	}

	fmt.Fprintf(w, "Refresh interval: %s\n", interval)
	fmt.Fprintln(w, "Press Ctrl+C to stop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastCount := 0
	refresh := func() {
		snap, err := cfg.Load(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[Watch] Refresh failed: %v", err)
			}
			return
		}

		if cfg.Clear {
			fmt.Fprint(w, clearScreen)
		}
		if err := cfg.Render(w, snap); err != nil {
			log.Printf("[Watch] Render failed: %v", err)
			return
		}

		if snap.MessageCount > lastCount {
			fmt.Fprintf(w, "\n%d new message(s) since last check\n", snap.MessageCount-lastCount)
		}
		lastCount = snap.MessageCount
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "\nStopped watching.")
			return nil

		case <-ticker.C:
			refresh()

		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			refresh()
			ticker.Reset(interval)
		}
	}
}
