package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/archive"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/store"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := tempDB(t)
	seedDungeon(t, src)
	path := filepath.Join(t.TempDir(), "s1"+archive.Extension)

	out, err := execute(NewExportCommand(&RootOptions{Format: "text"}), "--db", src, "--session", "s1", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ s1: 5 settlement(s) through seq 5")

	dst := tempDB(t)
	out, err = execute(NewImportCommand(&RootOptions{Format: "text"}), "--db", dst, path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ s1: 5 settlement(s) through seq 5")
	assert.Contains(t, out, "Digest: ")

	// The imported copy replays against its own snapshot.
	out, err = execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All sessions verified deterministic")

	st, err := store.Open(dst)
	require.NoError(t, err)
	defer st.Close()
	state, err := st.Load(context.Background(), "s1")
	require.NoError(t, err)
	a, ok := state.Entity("A")
	require.True(t, ok)
	assert.Equal(t, 9, a.HP)
}

func TestImportRefusesExistingSession(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)
	path := filepath.Join(t.TempDir(), "s1"+archive.Extension)

	_, err := execute(NewExportCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--session", "s1", "-o", path)
	require.NoError(t, err)

	_, err = execute(NewImportCommand(&RootOptions{Format: "text"}), "--db", dbPath, path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "session s1 already stored (5 settlements)")
}

func TestImportRefusesDivergentArchive(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	entries, err := st.ReadSettlements(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Claim the attack landed.
	entries[4].Outcome = settlement.Outcome{Status: settlement.Applied}
	path := filepath.Join(t.TempDir(), "forged"+archive.Extension)
	require.NoError(t, archive.WriteFile(path, entries))

	dst := tempDB(t)
	out, err := execute(NewImportCommand(&RootOptions{Format: "text"}), "--db", dst, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [NON_DETERMINISTIC]: archive does not replay")

	st, err = store.Open(dst)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions, "nothing is written for a divergent archive")
}

func TestExportUnknownSession(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)

	_, err := execute(NewExportCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--session", "nope", "-o", filepath.Join(t.TempDir(), "x.jsonl.zst"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no settlements stored for session nope")
}

func TestImportMissingArchive(t *testing.T) {
	_, err := execute(NewImportCommand(&RootOptions{Format: "text"}), "--db", tempDB(t), filepath.Join(t.TempDir(), "missing.jsonl.zst"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
