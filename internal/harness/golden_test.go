package harness

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_MoveThenAttack(t *testing.T) {
	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden -update
	result := RunWithGolden(t, loadTestScenario(t, "move_then_attack"))
	assert.Len(t, result.Trace, 3)
}

func TestTraceJSONL_OneCanonicalLinePerTick(t *testing.T) {
	result, err := Run(loadTestScenario(t, "dungeon_clear"))
	require.NoError(t, err)

	out, err := result.TraceJSONL()
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSuffix(out, []byte("\n")), []byte("\n"))
	require.Len(t, lines, 2, "the refused move produces no tick")
	assert.True(t, bytes.HasPrefix(lines[0], []byte(`{"settlements":[`)))
	assert.Contains(t, string(lines[1]), `"result":"victory"`)
	assert.Contains(t, string(lines[1]), `"rewards":[{"gold":3,"player_id":"A","xp":5}]`)
	assert.NotContains(t, string(out), "digest")

	again, err := result.TraceJSONL()
	require.NoError(t, err)
	assert.Equal(t, out, again)
}
