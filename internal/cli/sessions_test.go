package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/store"
)

func TestSessionsEmpty(t *testing.T) {
	dbPath := tempDB(t)
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(NewSessionsCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "No sessions found in database.\n", out)
}

func TestSessionsListsEverySession(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)
	seedDuel(t, dbPath)

	out, err := execute(NewSessionsCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data []SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)

	byID := map[string]SessionInfo{}
	for _, s := range resp.Data {
		byID[s.ID] = s
	}
	assert.Equal(t, SessionInfo{ID: "s1", Kind: "dungeon", Creator: "A", LastSeq: 5, Status: "running"}, byID["s1"])
	assert.Equal(t, "duel", byID["d1"].Kind)
	assert.Equal(t, int64(1), byID["d1"].LastSeq)
}

func TestSessionsText(t *testing.T) {
	dbPath := tempDB(t)
	seedDungeon(t, dbPath)

	out, err := execute(NewSessionsCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "dungeon")
	assert.Contains(t, out, "seq 5")
	assert.Contains(t, out, "running")
}
