// Package monitor assembles a point-in-time view of a track's message bus
// and renders it for humans or machines.
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/audit"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/deadlock"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"golang.org/x/sync/errgroup"
)

// DefaultRecent is how many trailing messages a snapshot keeps.
const DefaultRecent = 5

// Options tunes what Load derives from the raw state.
type Options struct {
	Track          string
	StaleThreshold time.Duration // <= 0 uses audit.DefaultStaleThreshold
	Recent         int           // <= 0 uses DefaultRecent
}

// BoardSummary counts board activity against the client's quorum.
type BoardSummary struct {
	Assessments int `json:"assessments"`
	Votes       int `json:"votes"`
	Quorum      int `json:"quorum"`
	Approve     int `json:"approve"`
	Reject      int `json:"reject"`
	Discussion  int `json:"discussion"`
}

// Snapshot is everything the monitor shows for one refresh.
type Snapshot struct {
	Track        string                      `json:"track,omitempty"`
	GeneratedAt  bus.Timestamp               `json:"generated_at"`
	MessageCount int                         `json:"message_count"`
	CountsByType map[bus.MessageType]int     `json:"counts_by_type"`
	Workers      map[string]bus.WorkerStatus `json:"workers"`
	Stale        []audit.StaleWorker         `json:"stale_workers"`
	ActiveLocks  []bus.LockEntry             `json:"active_locks"`
	ExpiredLocks []audit.ExpiredLock         `json:"expired_locks"`
	Deadlock     []string                    `json:"deadlock,omitempty"`
	Recent       []bus.Message               `json:"recent"`
	Board        BoardSummary                `json:"board"`
	Problems     []string                    `json:"problems,omitempty"`
}

// Load reads the event log, lock table, registry and board concurrently and
// derives the audit and deadlock findings from them. Corrupt entries and a
// source that cannot be read do not fail the load; they are listed in Problems
// and the source counts as empty. Load fails only when nothing could be read
// or ctx is done.
func Load(ctx context.Context, client *bus.Client, opts Options) (*Snapshot, error) {
	var (
		messages    []bus.Message
		locks       map[string]bus.Lock
		statuses    map[string]bus.WorkerStatus
		assessments map[string]bus.Assessment
		votes       map[string]bus.Vote
		discussion  []bus.DiscussionEntry

		corrupt [6][]*bus.CorruptEntryError
		failed  [6]error
	)

	g, gctx := errgroup.WithContext(ctx)
	read := func(i int, what string, fn func() ([]*bus.CorruptEntryError, error)) {
		g.Go(func() error {
			c, err := fn()
			corrupt[i] = c
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed[i] = fmt.Errorf("%s: %w", what, err)
			}
			return nil
		})
	}
	read(0, "event log", func() (c []*bus.CorruptEntryError, err error) {
		messages, c, err = client.ReadAll(gctx)
		return c, err
	})
	read(1, "lock table", func() (c []*bus.CorruptEntryError, err error) {
		locks, c, err = client.Locks(gctx)
		return c, err
	})
	read(2, "worker registry", func() (c []*bus.CorruptEntryError, err error) {
		statuses, c, err = client.AllStatuses(gctx)
		return c, err
	})
	read(3, "assessments", func() (c []*bus.CorruptEntryError, err error) {
		assessments, c, err = client.Assessments(gctx)
		return c, err
	})
	read(4, "votes", func() (c []*bus.CorruptEntryError, err error) {
		votes, c, err = client.Votes(gctx)
		return c, err
	})
	read(5, "discussion", func() (c []*bus.CorruptEntryError, err error) {
		discussion, c, err = client.ReadDiscussion(gctx)
		return c, err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var problems []string
	for _, err := range failed {
		if err != nil {
			log.Printf("[Monitor] Read failed, showing partial state: %v", err)
			problems = append(problems, err.Error())
		}
	}
	if len(problems) == len(failed) {
		return nil, fmt.Errorf("failed to read %w", failed[0])
	}

	now := client.Now()
	recent := opts.Recent
	if recent <= 0 {
		recent = DefaultRecent
	}

	snap := &Snapshot{
		Track:        opts.Track,
		GeneratedAt:  bus.At(now),
		MessageCount: len(messages),
		CountsByType: make(map[bus.MessageType]int),
		Workers:      statuses,
		Stale:        audit.StaleWorkers(statuses, opts.StaleThreshold, now),
		ActiveLocks:  audit.ActiveLocks(locks, now),
		ExpiredLocks: audit.ExpiredLocks(locks, now),
		Deadlock:     deadlock.Detect(messages, statuses),
		Recent:       tail(messages, recent),
	}
	if snap.Workers == nil {
		snap.Workers = map[string]bus.WorkerStatus{}
	}
	for i := range messages {
		snap.CountsByType[messages[i].Type]++
	}

	approve, reject := bus.Tally(votes)
	snap.Board = BoardSummary{
		Assessments: len(assessments),
		Votes:       len(votes),
		Quorum:      client.Quorum(),
		Approve:     approve,
		Reject:      reject,
		Discussion:  len(discussion),
	}

	snap.Problems = problems
	for _, group := range corrupt {
		for _, c := range group {
			snap.Problems = append(snap.Problems, c.Error())
		}
	}

	return snap, nil
}

func tail(messages []bus.Message, n int) []bus.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
