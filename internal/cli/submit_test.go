package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/world"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSessionConfig(t *testing.T) {
	path := writeConfig(t, `
kind: dungeon
seed: 42
width: 5
height: 5
no_border: true
spawns:
  - { x: 0, y: 0 }
enemies:
  - { id: B, x: 0, y: 1, hp: 10 }
`)
	cfg, err := loadSessionConfig(path)
	require.NoError(t, err)
	assert.Equal(t, world.KindDungeon, cfg.Kind)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.True(t, cfg.NoBorder)
	require.Len(t, cfg.Enemies, 1)
	assert.Equal(t, intent.EnemySpawn{ID: "B", Pos: world.Pos{X: 0, Y: 1}, HP: 10}, cfg.Enemies[0])
}

func TestLoadSessionConfig_UnknownField(t *testing.T) {
	_, err := loadSessionConfig(writeConfig(t, "kind: duel\nseed: 1\nopponent: B\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opponent")
}

func TestSubmission(t *testing.T) {
	duel := writeConfig(t, "kind: duel\nseed: 7\ninvitee: B\n")

	t.Run("config implies create", func(t *testing.T) {
		opts := &SubmitOptions{Actor: "A", ConfigPath: duel}
		sub, err := opts.submission()
		require.NoError(t, err)
		assert.Equal(t, intent.KindCreate, sub.Kind)
		assert.Equal(t, "A", sub.Principal)
		require.NotNil(t, sub.Config)
		assert.Equal(t, "B", sub.Config.Invitee)
	})

	t.Run("as overrides the principal", func(t *testing.T) {
		opts := &SubmitOptions{SessionID: "s1", Actor: "A", As: "C", Kind: "move", Direction: "w"}
		sub, err := opts.submission()
		require.NoError(t, err)
		assert.Equal(t, "C", sub.Principal)
		assert.Equal(t, "A", sub.ActorID)
		assert.Equal(t, "w", sub.Direction)
	})

	t.Run("join carries the loadout", func(t *testing.T) {
		opts := &SubmitOptions{SessionID: "s1", Actor: "A", Kind: "dungeon.join", Items: map[string]int{"potion": 2}}
		sub, err := opts.submission()
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"potion": 2}, sub.Items)
	})

	invalid := []struct {
		name string
		opts SubmitOptions
		want string
	}{
		{"missing kind", SubmitOptions{SessionID: "s1", Actor: "A"}, "--kind is required"},
		{"unknown kind", SubmitOptions{SessionID: "s1", Actor: "A", Kind: "teleport"}, `unknown intent kind "teleport"`},
		{"create without config", SubmitOptions{Actor: "A", Kind: "create"}, "create requires --config"},
		{"missing session", SubmitOptions{Actor: "A", Kind: "attack"}, "--session is required for attack"},
		{"unreadable config", SubmitOptions{Actor: "A", ConfigPath: filepath.Join(t.TempDir(), "none.yaml")}, "failed to read session config"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.submission()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSubmitInvalidFlagsExitCode(t *testing.T) {
	_, err := execute(NewSubmitCommand(&RootOptions{Format: "text"}), "--actor", "A")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--kind is required")
}
