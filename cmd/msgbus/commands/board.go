package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/consensus"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/spf13/cobra"
)

var (
	boardDirector   string
	boardVerdict    string
	boardSummary    string
	boardConcerns   []string
	boardRationale  string
	boardConditions []string
	boardMessage    string
	boardReplyTo    string
	boardTimeout    time.Duration
	boardPoll       time.Duration
	boardOutput     string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Record assessments and votes, discuss, and tally the board",
	Long: `The board of directors reviews a track. Each director records an
assessment, may post to the discussion thread, and casts a final vote.
A director's later assessment or vote replaces their earlier one.`,
}

var boardAssessCmd = &cobra.Command{
	Use:   "assess <track>",
	Short: "Record a director's assessment",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardAssess,
}

var boardVoteCmd = &cobra.Command{
	Use:   "vote <track>",
	Short: "Record a director's final vote",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardVote,
}

var boardDiscussCmd = &cobra.Command{
	Use:   "discuss <track>",
	Short: "Post to the board's discussion thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardDiscuss,
}

var boardTallyCmd = &cobra.Command{
	Use:   "tally <track>",
	Short: "Show every vote and the APPROVE/REJECT tally",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardTally,
}

var boardWaitCmd = &cobra.Command{
	Use:   "wait <track>",
	Short: "Block until the quorum of votes is in, then print the tally",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardWait,
}

func init() {
	for _, c := range []*cobra.Command{boardAssessCmd, boardVoteCmd, boardDiscussCmd} {
		c.Flags().StringVarP(&boardDirector, "director", "d", "", "Director id (required)")
		_ = c.MarkFlagRequired("director")
	}

	boardAssessCmd.Flags().StringVar(&boardSummary, "summary", "", "Assessment summary (required)")
	boardAssessCmd.Flags().StringVar(&boardVerdict, "verdict", "", "Preliminary verdict: APPROVE or REJECT")
	boardAssessCmd.Flags().StringArrayVar(&boardConcerns, "concern", nil, "A concern (repeatable)")
	_ = boardAssessCmd.MarkFlagRequired("summary")

	boardVoteCmd.Flags().StringVar(&boardVerdict, "verdict", "", "APPROVE or REJECT (required)")
	boardVoteCmd.Flags().StringVar(&boardRationale, "rationale", "", "Why")
	boardVoteCmd.Flags().StringArrayVar(&boardConditions, "condition", nil, "A condition attached to the vote (repeatable)")
	_ = boardVoteCmd.MarkFlagRequired("verdict")

	boardDiscussCmd.Flags().StringVarP(&boardMessage, "message", "m", "", "Message body (required)")
	boardDiscussCmd.Flags().StringVar(&boardReplyTo, "reply-to", "", "Id of the post being answered")
	_ = boardDiscussCmd.MarkFlagRequired("message")

	for _, c := range []*cobra.Command{boardTallyCmd, boardWaitCmd} {
		c.Flags().StringVarP(&boardOutput, "output", "o", "default", "Output format: default or json")
	}
	boardWaitCmd.Flags().DurationVar(&boardTimeout, "timeout", 0, "Give up after this long (0 waits forever)")
	boardWaitCmd.Flags().DurationVar(&boardPoll, "poll", consensus.DefaultPollInterval, "How often to re-read the votes")

	boardCmd.AddCommand(boardAssessCmd, boardVoteCmd, boardDiscussCmd, boardTallyCmd, boardWaitCmd)
	rootCmd.AddCommand(boardCmd)
}

func runBoardAssess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	a := bus.Assessment{
		Verdict:  bus.Verdict(strings.ToUpper(boardVerdict)),
		Summary:  boardSummary,
		Concerns: boardConcerns,
	}
	if err := sess.client.RecordAssessment(ctx, boardDirector, a); err != nil {
		return boardError(err)
	}
	printer.Success("Recorded assessment from %s\n", boardDirector)
	return nil
}

func runBoardVote(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	v := bus.Vote{
		FinalVerdict: bus.Verdict(strings.ToUpper(boardVerdict)),
		Rationale:    boardRationale,
		Conditions:   boardConditions,
	}
	if err := sess.client.RecordVote(ctx, boardDirector, v); err != nil {
		return boardError(err)
	}
	printer.Success("Recorded %s vote from %s\n", v.FinalVerdict, boardDirector)
	return nil
}

func runBoardDiscuss(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, err := sess.client.Discuss(ctx, bus.DiscussionEntry{
		Director: boardDirector,
		Message:  boardMessage,
		ReplyTo:  boardReplyTo,
	})
	if err != nil {
		return boardError(err)
	}
	printer.Success("Posted %s\n", entry.ID)
	return nil
}

func runBoardTally(cmd *cobra.Command, args []string) error {
	if err := checkBoardOutput(); err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	votes, corrupt, err := sess.client.Votes(ctx)
	if err != nil {
		return err
	}
	for _, c := range corrupt {
		printer.Warning("Skipping %v\n", c)
	}

	sanitized := consensus.Sanitize(votes)
	approve, reject := bus.Tally(sanitized)
	return printOutcome(cmd, &consensus.Outcome{Votes: sanitized, Approve: approve, Reject: reject}, sess.client.Quorum())
}

func runBoardWait(cmd *cobra.Command, args []string) error {
	if err := checkBoardOutput(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if boardTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, boardTimeout)
		defer cancel()
	}

	sess, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	waiter := &consensus.Waiter{
		Board:  sess.client,
		Quorum: sess.client.Quorum(),
		Poll:   boardPoll,
		Seats:  sess.cfg.Board.Seats,
	}
	outcome, err := waiter.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return printer.Error(
			"board did not reach quorum",
			fmt.Sprintf("Fewer than %d votes after %s", waiter.Quorum, boardTimeout),
			[]string{"Check who has voted:\n  msgbus board tally <track>"},
		)
	}
	if err != nil {
		return err
	}
	return printOutcome(cmd, outcome, waiter.Quorum)
}

func checkBoardOutput() error {
	if boardOutput == "default" || boardOutput == "json" {
		return nil
	}
	return printer.Error(
		"invalid output format",
		fmt.Sprintf("Unknown format: %s", boardOutput),
		[]string{"Valid formats: default, json"},
	)
}

func printOutcome(cmd *cobra.Command, outcome *consensus.Outcome, quorum int) error {
	if boardOutput == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	directors := make([]string, 0, len(outcome.Votes))
	for d := range outcome.Votes {
		directors = append(directors, d)
	}
	sort.Strings(directors)

	printer.Info("Votes: %d/%d directors\n", len(outcome.Votes), quorum)
	for _, d := range directors {
		v := outcome.Votes[d]
		printer.Info("   %-16s %s", d, v.FinalVerdict)
		if v.Rationale != "" {
			printer.Info(" - %s", v.Rationale)
		}
		printer.Info("\n")
	}
	printer.Info("Current tally: %d APPROVE / %d REJECT\n", outcome.Approve, outcome.Reject)
	return nil
}

// boardError formats board validation failures for the terminal.
func boardError(err error) error {
	if bus.IsValidation(err) {
		return printer.Error("board entry rejected", err.Error(), nil)
	}
	return err
}
