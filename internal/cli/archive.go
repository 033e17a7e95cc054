package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/intents/internal/archive"
	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/engine"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database  string
	SessionID string
	Out       string
}

// ArchiveSummary reports an exported or imported archive.
type ArchiveSummary struct {
	SessionID   string `json:"session_id"`
	Path        string `json:"path"`
	Settlements int    `json:"settlements"`
	LastSeq     int64  `json:"last_seq"`
	Digest      string `json:"digest,omitempty"`
}

func (s ArchiveSummary) String() string {
	msg := fmt.Sprintf("✓ %s: %d settlement(s) through seq %d (%s)", s.SessionID, s.Settlements, s.LastSeq, s.Path)
	if s.Digest != "" {
		msg += "\n  Digest: " + s.Digest
	}
	return msg
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a settlement log to a compressed archive",
		Long: `Write the full settlement log of a session as zstd-compressed canonical
JSON lines, one settlement per line.

Examples:
  intents export --db ./intents.db --session s1
  intents export --db ./intents.db --session s1 --out ./archive/s1.jsonl.zst`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "archive path (default <session>"+archive.Extension+")")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.ReadSettlements(context.Background(), opts.SessionID, 0)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read settlements", err)
	}
	if len(entries) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no settlements stored for session %s", opts.SessionID))
	}

	path := opts.Out
	if path == "" {
		path = opts.SessionID + archive.Extension
	}
	out.VerboseLog("writing %d settlement(s) to %s", len(entries), path)
	if err := archive.WriteFile(path, entries); err != nil {
		return WrapExitError(ExitCommandError, "failed to write archive", err)
	}

	return out.Success(ArchiveSummary{
		SessionID:   opts.SessionID,
		Path:        path,
		Settlements: len(entries),
		LastSeq:     entries[len(entries)-1].Seq,
	})
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database  string
	RulesPath string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Import a settlement archive into the database",
		Long: `Load a settlement archive written by export into a database.

The log is replayed before anything is written: an archive whose outcomes
do not reproduce under the given rules is refused. The replayed state is
saved as the session's snapshot. A session already present in the
database is never overwritten.

Exit codes:
  0 - Archive imported
  1 - Archive does not replay deterministically
  2 - Command error (unreadable archive, session exists, etc.)

Example:
  intents import --db ./intents.db ./archive/s1.jsonl.zst`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RulesPath, "rules", "", "CUE file overriding the default rules")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(opts.RootOptions, cmd)

	rules, err := config.LoadRules(opts.RulesPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}

	entries, err := archive.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read archive", err)
	}
	if len(entries) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("archive %s is empty", path))
	}
	sessionID := entries[0].SessionID

	log, err := settlement.FromEntries(sessionID, entries)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid archive", err)
	}
	out.VerboseLog("replaying %d settlement(s) of %s", log.Len(), sessionID)
	final, err := engine.Replay(log, rules)
	if errors.Is(err, engine.ErrNonDeterministic) {
		_ = out.Error(string(engine.ErrCodeNonDeterministic), "archive does not replay", err.Error())
		return WrapExitError(ExitFailure, "archive does not replay", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay archive", err)
	}
	digest, err := final.Digest()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest state", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	existing, err := st.ReadSettlements(ctx, sessionID, 0)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read settlements", err)
	}
	if len(existing) > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("session %s already stored (%d settlements)", sessionID, len(existing)))
	}

	if err := st.AppendSettlements(ctx, sessionID, log.Entries()); err != nil {
		return WrapExitError(ExitCommandError, "failed to store settlements", err)
	}
	if err := st.Save(ctx, final); err != nil {
		return WrapExitError(ExitCommandError, "failed to save snapshot", err)
	}

	return out.Success(ArchiveSummary{
		SessionID:   sessionID,
		Path:        path,
		Settlements: log.Len(),
		LastSeq:     log.LastSeq(),
		Digest:      digest,
	})
}
