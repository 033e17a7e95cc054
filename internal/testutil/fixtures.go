package testutil

import (
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/world"
)

// SmallDungeon returns a borderless single-floor dungeon config with the
// given spawn cells and explicit enemies. The seed is fixed.
func SmallDungeon(width, height int, spawns []world.Pos, enemies ...intent.EnemySpawn) *intent.SessionConfig {
	return &intent.SessionConfig{
		Kind:     world.KindDungeon,
		Seed:     42,
		Width:    width,
		Height:   height,
		NoBorder: true,
		Floors:   1,
		Spawns:   spawns,
		Enemies:  enemies,
	}
}

// Enemy is shorthand for an explicit enemy spawn.
func Enemy(id string, x, y, hp int) intent.EnemySpawn {
	return intent.EnemySpawn{ID: id, Pos: world.Pos{X: x, Y: y}, HP: hp}
}

// At is shorthand for a grid position.
func At(x, y int) world.Pos {
	return world.Pos{X: x, Y: y}
}
