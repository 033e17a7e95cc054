package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/intents/internal/store"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string
}

// SessionInfo is one row of the sessions listing.
type SessionInfo struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Creator string `json:"creator"`
	LastSeq int64  `json:"last_seq"`
	Status  string `json:"status,omitempty"`
	Result  string `json:"result,omitempty"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Long: `List every session registered in the database with its last settled seq
and the status of its latest snapshot.

Example:
  intents sessions --db ./intents.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sessions, err := st.ListSessions(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			ID:      s.ID,
			Kind:    string(s.Kind),
			Creator: s.Creator,
			LastSeq: s.LastSeq,
			Status:  string(s.Status),
			Result:  string(s.Result),
		})
	}

	out := newFormatter(opts.RootOptions, cmd)
	if out.JSON() {
		return out.Success(infos)
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}
	for _, s := range infos {
		status := s.Status
		if status == "" {
			status = "unsaved"
		}
		if s.Result != "" {
			status += " (" + s.Result + ")"
		}
		fmt.Fprintf(w, "%-38s %-8s %-12s seq %-5d %s\n", s.ID, s.Kind, s.Creator, s.LastSeq, status)
	}
	return nil
}
