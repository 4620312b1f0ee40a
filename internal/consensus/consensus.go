// Package consensus waits for the board to reach quorum and sanitises the votes
// it collects. It counts; deciding what a tally means is left to the caller.
package consensus

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// DefaultPollInterval is how often the vote table is re-read.
const DefaultPollInterval = 100 * time.Millisecond

// progressLogInterval spaces out "still waiting" log lines.
const progressLogInterval = 5 * time.Second

// VoteSource reads the current votes. *bus.Client implements it.
type VoteSource interface {
	Votes(ctx context.Context) (map[string]bus.Vote, []*bus.CorruptEntryError, error)
}

// Outcome is the sanitised state of the board once quorum was reached.
type Outcome struct {
	Votes   map[string]bus.Vote `json:"votes"`
	Approve int                 `json:"approve"`
	Reject  int                 `json:"reject"`
	Elapsed time.Duration       `json:"elapsed"`
}

// Waiter polls a VoteSource until Quorum votes are present.
type Waiter struct {
	Board  VoteSource
	Quorum int
	Poll   time.Duration

	// Seats, when set, names the directors expected to vote so that progress
	// logs can say who is still outstanding.
	Seats []string
}

// WaitForVotes polls board every poll interval until quorum votes are present.
func WaitForVotes(ctx context.Context, board VoteSource, quorum int, poll time.Duration) (*Outcome, error) {
	w := &Waiter{Board: board, Quorum: quorum, Poll: poll}
	return w.Wait(ctx)
}

// Wait blocks until quorum is reached or ctx is done. Each newly arrived vote
// is logged once. Read errors end the wait; corrupt entries are logged and
// skipped.
func (w *Waiter) Wait(ctx context.Context) (*Outcome, error) {
	quorum := w.Quorum
	if quorum <= 0 {
		quorum = bus.DefaultQuorum
	}
	poll := w.Poll
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	log.Printf("[Consensus] Waiting for %d votes", quorum)

	start := time.Now()
	lastLog := start
	seen := make(map[string]bool)
	reported := make(map[string]bool)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		votes, corrupt, err := w.Board.Votes(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range corrupt {
			if !reported[c.Key] {
				log.Printf("[Consensus] WARN: skipping unreadable vote: %v", c)
				reported[c.Key] = true
			}
		}

		for director, v := range votes {
			if !seen[director] {
				logVoteArrival(director, v.FinalVerdict)
				seen[director] = true
			}
		}

		if len(votes) >= quorum {
			elapsed := time.Since(start)
			sanitized := Sanitize(votes)
			approve, reject := bus.Tally(sanitized)

			log.Printf("[Consensus] Quorum reached: %d/%d votes (took %v)",
				len(votes), quorum, elapsed.Round(time.Millisecond))
			logEvent("quorum_reached", map[string]interface{}{
				"vote_count":  len(votes),
				"quorum":      quorum,
				"approve":     approve,
				"reject":      reject,
				"duration_ms": elapsed.Milliseconds(),
			})

			return &Outcome{Votes: sanitized, Approve: approve, Reject: reject, Elapsed: elapsed}, nil
		}

		if time.Since(lastLog) >= progressLogInterval {
			if missing := w.outstanding(votes); len(missing) > 0 {
				log.Printf("[Consensus] Waiting for votes from: %v (waited %v)",
					missing, time.Since(start).Round(time.Second))
			} else {
				log.Printf("[Consensus] Waiting for votes: %d/%d (waited %v)",
					len(votes), quorum, time.Since(start).Round(time.Second))
			}
			lastLog = time.Now()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// outstanding lists configured seats that have not voted yet.
func (w *Waiter) outstanding(votes map[string]bus.Vote) []string {
	var missing []string
	for _, seat := range w.Seats {
		if _, ok := votes[seat]; !ok {
			missing = append(missing, seat)
		}
	}
	sort.Strings(missing)
	return missing
}

// Sanitize returns a copy of votes where any verdict other than APPROVE or
// REJECT is replaced by REJECT. Each replacement is logged as a warning.
func Sanitize(votes map[string]bus.Vote) map[string]bus.Vote {
	sanitized := make(map[string]bus.Vote, len(votes))
	for director, v := range votes {
		if err := v.FinalVerdict.Validate(); err != nil {
			log.Printf("[Consensus] WARN: Director %s submitted invalid verdict '%s', treating as '%s'",
				director, v.FinalVerdict, bus.VerdictReject)
			logEvent("invalid_vote", map[string]interface{}{
				"director":     director,
				"verdict":      string(v.FinalVerdict),
				"action_taken": "treated_as_reject",
			})
			v.FinalVerdict = bus.VerdictReject
		}
		sanitized[director] = v
	}
	return sanitized
}

func logVoteArrival(director string, verdict bus.Verdict) {
	log.Printf("[Consensus] Received %s vote from %s", verdict, director)
	logEvent("vote_received", map[string]interface{}{
		"director": director,
		"verdict":  string(verdict),
	})
}

// logEvent writes a single-line JSON event alongside the human-readable log.
func logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "consensus"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Consensus] Failed to marshal log event: %v", err)
		return
	}
	log.Println(string(jsonData))
}
