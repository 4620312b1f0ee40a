package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/deadlock"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/fatih/color"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	warn    = color.New(color.FgYellow)
	alarm   = color.New(color.FgRed, color.Bold)
	dim     = color.New(color.Faint)
)

var rule = strings.Repeat("=", 60)

// Render writes the human-readable status report.
func Render(w io.Writer, snap *Snapshot) {
	fmt.Fprintf(w, "\n%s\n", rule)
	heading.Fprintf(w, "MESSAGE BUS STATUS - %s\n", snap.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(w, rule)

	heading.Fprintf(w, "\nMESSAGES: %d total\n", snap.MessageCount)
	types := make([]string, 0, len(snap.CountsByType))
	for t := range snap.CountsByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "   %s: %d\n", t, snap.CountsByType[bus.MessageType(t)])
	}

	heading.Fprintf(w, "\nWORKERS: %d registered\n", len(snap.Workers))
	workers := make([]string, 0, len(snap.Workers))
	for id := range snap.Workers {
		workers = append(workers, id)
	}
	sort.Strings(workers)
	for _, id := range workers {
		ws := snap.Workers[id]
		fmt.Fprintf(w, "   [%s] %s\n", ws.Status, id)
		fmt.Fprintf(w, "      Task: %s\n", orDash(ws.TaskID))
		fmt.Fprintf(w, "      Status: %s (%d%%)\n", ws.Status, ws.ProgressPct)
	}

	if len(snap.Stale) > 0 {
		warn.Fprintf(w, "\nSTALE WORKERS: %d\n", len(snap.Stale))
		for _, sw := range snap.Stale {
			fmt.Fprintf(w, "   %s - %d min since heartbeat\n", sw.WorkerID, sw.MinutesStale)
		}
	}

	heading.Fprintf(w, "\nACTIVE LOCKS: %d\n", len(snap.ActiveLocks))
	for _, l := range snap.ActiveLocks {
		fmt.Fprintf(w, "   %s\n", l.Resource)
		fmt.Fprintf(w, "      Held by: %s\n", l.WorkerID)
		fmt.Fprintf(w, "      Expires: %s\n", l.ExpiresAt)
	}

	if len(snap.ExpiredLocks) > 0 {
		warn.Fprintf(w, "\nEXPIRED LOCKS: %d\n", len(snap.ExpiredLocks))
		for _, el := range snap.ExpiredLocks {
			fmt.Fprintf(w, "   %s - expired %d min ago\n", el.Resource, el.MinutesExpired)
		}
	}

	if len(snap.Deadlock) > 0 {
		alarm.Fprintln(w, "\nDEADLOCK DETECTED!")
		fmt.Fprintf(w, "   Cycle: %s\n", deadlock.Format(snap.Deadlock))
	}

	heading.Fprintf(w, "\nRECENT MESSAGES (last %d):\n", len(snap.Recent))
	for i := range snap.Recent {
		m := &snap.Recent[i]
		fmt.Fprintf(w, "   [%s] %s from %s\n", m.Timestamp, m.Type, orDash(m.Source))
	}

	b := snap.Board
	if b.Assessments > 0 || b.Votes > 0 {
		heading.Fprintln(w, "\nBOARD STATUS:")
		fmt.Fprintf(w, "   Assessments: %d/%d directors\n", b.Assessments, b.Quorum)
		fmt.Fprintf(w, "   Votes: %d/%d directors\n", b.Votes, b.Quorum)
		if b.Votes > 0 {
			fmt.Fprintf(w, "   Current tally: %d APPROVE / %d REJECT\n", b.Approve, b.Reject)
		}
		if b.Discussion > 0 {
			fmt.Fprintf(w, "   Discussion: %d post(s)\n", b.Discussion)
		}
	}

	if len(snap.Problems) > 0 {
		warn.Fprintf(w, "\nREAD PROBLEMS: %d\n", len(snap.Problems))
		for _, p := range snap.Problems {
			dim.Fprintf(w, "   %s\n", p)
		}
	}
}

// RenderJSON writes the snapshot as one indented JSON document.
func RenderJSON(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
