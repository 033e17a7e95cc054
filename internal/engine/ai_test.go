package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/testutil"
	"github.com/roach88/intents/internal/world"
)

func player(id string, x, y int) *world.Entity {
	return &world.Entity{ID: id, Kind: world.EntityPlayer, Pos: testutil.At(x, y), HP: 10, MaxHP: 10, Attack: 3, Alive: true, Level: 1}
}

func enemy(id string, x, y int) *world.Entity {
	return &world.Entity{ID: id, Kind: world.EntityEnemy, Pos: testutil.At(x, y), HP: 10, MaxHP: 10, Attack: 2, Alive: true}
}

// aiSolver returns a solver over a running 5x5 open dungeon.
func aiSolver(t *testing.T, obstacles []world.Pos, entities ...*world.Entity) *solver {
	t.Helper()
	st := world.Empty("s1")
	st.Kind = world.KindDungeon
	st.Status = world.StatusRunning
	st.Floor, st.Floors = 1, 1
	st.InitGrid(5, 5, false, obstacles)
	for _, e := range entities {
		require.NoError(t, st.Place(e))
	}
	rules := config.DefaultRules()
	return &solver{rules: &rules, st: st, tick: 1}
}

func moves(events []settlement.Event) map[string]world.Pos {
	got := map[string]world.Pos{}
	for _, e := range events {
		if e.Type == settlement.EventMoved {
			got[e.Actor] = *e.To
		}
	}
	return got
}

func TestEnemiesAct_EquidistantPlayersChaseLowerID(t *testing.T) {
	tests := []struct {
		name    string
		players []*world.Entity
		want    world.Pos
	}{
		{"A above, B left", []*world.Entity{player("A", 2, 0), player("B", 0, 2)}, testutil.At(2, 1)},
		{"A left, B above", []*world.Entity{player("A", 0, 2), player("B", 2, 0)}, testutil.At(1, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := aiSolver(t, nil, append(tt.players, enemy("E", 2, 2))...)

			events := s.enemiesAct()
			assert.Equal(t, map[string]world.Pos{"E": tt.want}, moves(events))
			assert.Equal(t, tt.want, s.st.Entities["E"].Pos)
		})
	}
}

func TestEnemiesAct_ContestedCellGoesToLowerEnemyID(t *testing.T) {
	// Both enemies step toward (2,1); their other axis is walled off.
	walls := []world.Pos{testutil.At(1, 0), testutil.At(3, 0)}
	tests := []struct {
		name   string
		first  *world.Entity
		second *world.Entity
	}{
		{"lower id on the left", enemy("E1", 1, 1), enemy("E2", 3, 1)},
		{"lower id on the right", enemy("E1", 3, 1), enemy("E2", 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stay := tt.second.Pos
			s := aiSolver(t, walls, player("A", 2, 0), tt.second, tt.first)

			events := s.enemiesAct()
			assert.Equal(t, map[string]world.Pos{"E1": testutil.At(2, 1)}, moves(events))
			assert.Equal(t, stay, s.st.Entities["E2"].Pos, "E2 finds no free cell and stays")
			assert.Equal(t, 10, s.st.Entities["A"].HP, "enemies that moved do not strike in the same step")
			assert.NoError(t, s.st.Check())
		})
	}
}

func TestEnemiesAct_DominantAxisThenFallback(t *testing.T) {
	tests := []struct {
		name      string
		obstacles []world.Pos
		want      world.Pos
		moved     bool
	}{
		{"dominant y axis", nil, testutil.At(0, 1), true},
		{"y blocked, steps along x", []world.Pos{testutil.At(0, 1)}, testutil.At(1, 0), true},
		{"both blocked, stays", []world.Pos{testutil.At(0, 1), testutil.At(1, 0)}, testutil.At(0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := aiSolver(t, tt.obstacles, player("A", 1, 3), enemy("E", 0, 0))

			events := s.enemiesAct()
			assert.Equal(t, tt.want, s.st.Entities["E"].Pos)
			_, moved := moves(events)["E"]
			assert.Equal(t, tt.moved, moved)
		})
	}
}

func TestEnemiesAct_AdjacentEnemyStrikes(t *testing.T) {
	s := aiSolver(t, nil, player("A", 1, 2), enemy("E", 1, 1))

	events := s.enemiesAct()
	require.Len(t, events, 1)
	assert.Equal(t, settlement.Event{Type: settlement.EventDamaged, Actor: "E", Target: "A", Amount: 2}, events[0])
	assert.Equal(t, 8, s.st.Entities["A"].HP)
	assert.Equal(t, testutil.At(1, 1), s.st.Entities["E"].Pos)
}

func TestEnemiesAct_IgnoresDownedPlayers(t *testing.T) {
	downed := player("A", 2, 1)
	downed.Alive = false
	downed.HP = 0
	s := aiSolver(t, nil, downed, player("B", 4, 4), enemy("E", 2, 2))

	events := s.enemiesAct()
	assert.Equal(t, map[string]world.Pos{"E": testutil.At(3, 2)}, moves(events), "chases B, ignoring adjacent downed A")
	assert.Equal(t, 0, s.st.Entities["A"].HP)
}
