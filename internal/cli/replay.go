package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/engine"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/store"
	"github.com/roach88/intents/internal/world"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - specific session only
	RulesPath string
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID     string `json:"session_id"`
	Settlements   int    `json:"settlements"`
	LastTick      int64  `json:"last_tick"`
	Digest        string `json:"digest"`
	Recorded      string `json:"recorded,omitempty"`
	Halted        bool   `json:"halted,omitempty"`
	SnapshotStale bool   `json:"snapshot_stale,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay settlement logs and verify determinism",
		Long: `Replay stored settlement logs and verify they reproduce the saved state.

Each session is rebuilt from an empty state by feeding its recorded
batches through the solver again. Every replayed outcome must equal the
recorded one, and the final digest must equal the digest saved with the
session's snapshot. A snapshot older than the log is reported as stale
and only the outcomes are compared.

Replay must use the rules the sessions were played with.

Exit codes:
  0 - All sessions are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  intents replay --db ./intents.db
  intents replay --db ./intents.db --session 0190f3a2-...
  intents replay --db ./intents.db --rules ./rules.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay specific session only")
	cmd.Flags().StringVar(&opts.RulesPath, "rules", "", "CUE file overriding the default rules")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	rules, err := config.LoadRules(opts.RulesPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var ids []string
	if opts.SessionID != "" {
		ids = []string{opts.SessionID}
	} else {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
	}

	if len(ids) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(newFormatter(opts.RootOptions, cmd), ReplayResult{
				Sessions:         []ReplaySessionResult{},
				AllDeterministic: true,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
		return nil
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(ids)),
		TotalSessions:    len(ids),
		AllDeterministic: true,
	}

	for _, id := range ids {
		sr, err := replaySession(ctx, st, id, rules)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", id), err)
		}
		result.Sessions = append(result.Sessions, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(newFormatter(opts.RootOptions, cmd), result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replaySession rebuilds one session and checks it against its snapshot.
// Divergence is reported in the result; other failures are returned.
func replaySession(ctx context.Context, st *store.Store, id string, rules config.Rules) (ReplaySessionResult, error) {
	sr := ReplaySessionResult{SessionID: id}

	rec, err := st.Recover(ctx, id)
	if err != nil {
		return sr, err
	}
	sr.Settlements = len(rec.Entries)
	sr.LastTick = rec.LastTick
	sr.Halted = rec.Halted
	sr.SnapshotStale = rec.SnapshotStale

	log, err := settlement.FromEntries(id, rec.Entries)
	if err != nil {
		return sr, err
	}

	snap, err := st.Snapshot(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return sr, err
	}
	sr.Recorded = snap.Digest

	var (
		final     *world.State
		replayErr error
	)
	if sr.Recorded != "" && !sr.SnapshotStale {
		final, replayErr = engine.VerifyReplay(log, rules, sr.Recorded)
	} else {
		final, replayErr = engine.Replay(log, rules)
	}
	if replayErr != nil && !errors.Is(replayErr, engine.ErrNonDeterministic) {
		return sr, replayErr
	}
	sr.Deterministic = replayErr == nil
	if replayErr != nil {
		sr.Error = replayErr.Error()
	}
	if final != nil {
		if sr.Digest, err = final.Digest(); err != nil {
			return sr, err
		}
	}
	return sr, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(out *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    string(engine.ErrCodeNonDeterministic),
			Message: "determinism verification failed",
		}
	}

	if err := out.Respond(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s\n", status, s.SessionID)
		fmt.Fprintf(w, "  Settlements: %d over %d tick(s)\n", s.Settlements, s.LastTick)

		if verbose {
			fmt.Fprintf(w, "  Digest: %s\n", s.Digest)
			if s.Recorded != "" {
				fmt.Fprintf(w, "  Recorded: %s\n", s.Recorded)
			}
		}
		if s.Halted {
			fmt.Fprintln(w, "  Halted: last batch settled as fatal")
		}
		if s.SnapshotStale {
			fmt.Fprintln(w, "  Warning: snapshot is behind the log, digest not compared")
		}
		if !s.Deterministic {
			fmt.Fprintf(w, "  Error: %s\n", s.Error)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
