package cli

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/store"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := execute(NewReplayCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := tempDB(t)
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in database.")
}

func TestReplaySeededSession(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 1 session(s)")
	assert.Contains(t, out, "✓ Session: s1")
	assert.Contains(t, out, "Settlements: 5 over 3 tick(s)")
	assert.Contains(t, out, "✓ All sessions verified deterministic")
	assert.NotContains(t, out, "Warning")
}

func TestReplayJSONOutput(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--session", "s1")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Sessions, 1)
	s := resp.Data.Sessions[0]
	assert.True(t, s.Deterministic)
	assert.Equal(t, 5, s.Settlements)
	assert.Equal(t, int64(3), s.LastTick)
	assert.Equal(t, s.Recorded, s.Digest)
}

func TestReplayDetectsTamperedOutcome(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)
	tamper(t, dbPath, `UPDATE settlements SET outcome = replace(outcome, 'no adjacent target', 'out of reach') WHERE session_id = 's1' AND seq = 5`)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Session: s1")
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestReplayDetectsTamperedSnapshot(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)
	tamper(t, dbPath, `UPDATE snapshots SET digest = 'bogus' WHERE session_id = 's1'`)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"code": "NON_DETERMINISTIC"`)
}

func tamper(t *testing.T, dbPath, stmt string) {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()
	res, err := db.Exec(stmt)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
