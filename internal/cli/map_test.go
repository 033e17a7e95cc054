package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapRendersBoard(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)

	out, err := execute(NewMapCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Session s1, floor 1/1, tick 3 (running)")
	assert.Contains(t, out, ".P...\n.E...\n.....\n.....\n.....")
	assert.Contains(t, out, "(1,0) hp 9/10 alive")
	assert.Contains(t, out, "(1,1) hp 10/")
}

func TestMapJSON(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)

	out, err := execute(NewMapCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--session", "s1")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			SessionID string `json:"session_id"`
			Tick      int64  `json:"tick"`
			Board     string `json:"board"`
			Entities  []struct {
				ID string `json:"id"`
			} `json:"entities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "s1", resp.Data.SessionID)
	assert.Equal(t, int64(3), resp.Data.Tick)
	require.Len(t, resp.Data.Entities, 2)
	assert.Equal(t, "A", resp.Data.Entities[0].ID)
	assert.Equal(t, "B", resp.Data.Entities[1].ID)
}

func TestMapDuelHasNoGrid(t *testing.T) {
	dbPath := tempDB(t)
	seedDuel(t, dbPath)

	_, err := execute(NewMapCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--session", "d1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "session d1 is a duel and has no grid")
}

func TestMapUnknownSession(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)

	_, err := execute(NewMapCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
