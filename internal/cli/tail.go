package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/store"
)

// TailOptions holds flags for the tail command.
type TailOptions struct {
	*RootOptions
	Database  string
	SessionID string
	Since     int64
}

// NewTailCommand creates the tail command.
func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TailOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print stored settlements of a session",
		Long: `Print the settlements of a session with a sequence number above --since,
in sequence order.

Examples:
  intents tail --db ./intents.db --session s1
  intents tail --db ./intents.db --session s1 --since 40 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only settlements with a higher seq")

	return cmd
}

func runTail(opts *TailOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.ReadSettlements(context.Background(), opts.SessionID, opts.Since)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read settlements", err)
	}

	out := newFormatter(opts.RootOptions, cmd)
	if out.JSON() {
		return out.Success(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(w, "No settlements after seq %d.\n", opts.Since)
		return nil
	}
	for _, e := range entries {
		printEntry(w, e, opts.Verbose)
	}
	return nil
}

func printEntry(w io.Writer, e settlement.Entry, verbose bool) {
	line := fmt.Sprintf("[%d] tick %d %s %s: %s", e.Seq, e.Tick, e.Intent.ActorID, e.Intent.Kind, e.Outcome.Status)
	if e.Outcome.Reason != "" {
		line += " (" + e.Outcome.Reason + ")"
	}
	fmt.Fprintln(w, line)
	if !verbose {
		return
	}
	for _, ev := range e.Outcome.Events {
		fmt.Fprintf(w, "    %s", ev.Type)
		if ev.Actor != "" {
			fmt.Fprintf(w, " actor=%s", ev.Actor)
		}
		if ev.Target != "" {
			fmt.Fprintf(w, " target=%s", ev.Target)
		}
		if ev.Amount != 0 {
			fmt.Fprintf(w, " amount=%d", ev.Amount)
		}
		if ev.To != nil {
			fmt.Fprintf(w, " to=(%d,%d)", ev.To.X, ev.To.Y)
		}
		fmt.Fprintln(w)
	}
	for _, r := range e.Outcome.Rewards {
		fmt.Fprintf(w, "    reward %s xp=%d gold=%d", r.PlayerID, r.XP, r.Gold)
		if r.Level != 0 {
			fmt.Fprintf(w, " level=%d", r.Level)
		}
		fmt.Fprintln(w)
	}
}
