package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "move_then_attack.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "move_then_attack", sc.Name)
	assert.Equal(t, "A", sc.Create.Actor)
	assert.Equal(t, world.KindDungeon, sc.Create.Config.Kind)
	assert.True(t, sc.Create.Config.NoBorder)
	require.Len(t, sc.Create.Config.Enemies, 1)
	assert.Equal(t, intent.EnemySpawn{ID: "B", Pos: world.Pos{X: 0, Y: 1}, HP: 10}, sc.Create.Config.Enemies[0])

	require.Len(t, sc.Ticks, 3)
	assert.Equal(t, "right", sc.Ticks[2].Submit[0].Direction)
	assert.Equal(t, Expectation{Seq: 5, Status: settlement.Rejected, Reason: "no adjacent target"}, sc.Ticks[2].Expect[1])

	require.Len(t, sc.Assertions, 5)
	require.NotNil(t, sc.Assertions[0].Pos)
	assert.Equal(t, world.Pos{X: 1, Y: 0}, *sc.Assertions[0].Pos)
	require.NotNil(t, sc.Assertions[1].Alive)
	assert.True(t, *sc.Assertions[1].Alive)
}

func TestLoadScenario_Durations(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "duel_timeout.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 121*time.Second, sc.Ticks[1].Advance)
	assert.Equal(t, 3, sc.Create.Level)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
create:
  actor: A
  config: { kind: duel, seed: 1, invitee: B }
tick:
  - submit: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
create: { actor: A, config: { kind: duel, seed: 1, invitee: B } }
ticks: [ {} ]
`,
			wantErr: "name is required",
		},
		{
			name: "missing creator",
			yaml: `
name: x
create: { config: { kind: duel, seed: 1, invitee: B } }
ticks: [ {} ]
`,
			wantErr: "create.actor is required",
		},
		{
			name: "unknown session kind",
			yaml: `
name: x
create: { actor: A, config: { kind: chess, seed: 1 } }
ticks: [ {} ]
`,
			wantErr: `create.config.kind "chess"`,
		},
		{
			name: "no seed",
			yaml: `
name: x
create: { actor: A, config: { kind: rumble } }
ticks: [ {} ]
`,
			wantErr: "seed is required",
		},
		{
			name: "no ticks",
			yaml: `
name: x
create: { actor: A, config: { kind: rumble, seed: 1 } }
`,
			wantErr: "at least one tick",
		},
		{
			name: "submit without kind",
			yaml: `
name: x
create: { actor: A, config: { kind: rumble, seed: 1 } }
ticks:
  - submit: [ { actor: B } ]
`,
			wantErr: "ticks[0].submit[0]: kind is required",
		},
		{
			name: "expect without status",
			yaml: `
name: x
create: { actor: A, config: { kind: rumble, seed: 1 } }
ticks:
  - expect: [ { seq: 1 } ]
`,
			wantErr: "ticks[0].expect[0]: status is required",
		},
		{
			name: "unknown assertion",
			yaml: `
name: x
create: { actor: A, config: { kind: rumble, seed: 1 } }
ticks: [ {} ]
assertions:
  - { type: trace_contains }
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "entity assertion without entity",
			yaml: `
name: x
create: { actor: A, config: { kind: rumble, seed: 1 } }
ticks: [ {} ]
assertions:
  - { type: entity, hp: 3 }
`,
			wantErr: "entity is required",
		},
		{
			name: "empty session assertion",
			yaml: `
name: x
create: { actor: A, config: { kind: rumble, seed: 1 } }
ticks: [ {} ]
assertions:
  - { type: session }
`,
			wantErr: "needs at least one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDir_SortedByFileName(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	var names []string
	for _, sc := range scenarios {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"duel_timeout", "dungeon_clear", "move_then_attack", "rumble_window"}, names)
}

func TestLoadDir_ReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: [\n"), 0644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yml")
}
