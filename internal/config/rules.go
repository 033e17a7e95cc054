package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pixil98/go-errors"
)

//go:embed rules.cue
var rulesSchema []byte

// Rules are the tunable numbers of the three game modes.
type Rules struct {
	Dungeon DungeonRules        `json:"dungeon"`
	Duel    DuelRules           `json:"duel"`
	Rumble  RumbleRules         `json:"rumble"`
	Items   map[string]ItemRule `json:"items"`
}

// DungeonRules size the grid and its combatants.
type DungeonRules struct {
	Width        int `json:"width"`
	Height       int `json:"height"`
	Floors       int `json:"floors"`
	MaxPlayers   int `json:"max_players"`
	PlayerHP     int `json:"player_hp"`
	PlayerAttack int `json:"player_attack"`
	EnemyHP      int `json:"enemy_hp"`
	EnemyAttack  int `json:"enemy_attack"`
	// FloorBonus extra enemies per floor past the first.
	FloorBonus int `json:"floor_bonus"`
	KillXP     int `json:"kill_xp"`
	KillGold   int `json:"kill_gold"`
}

// DuelRules drive the duel roll and its reward.
type DuelRules struct {
	TimeoutSeconds int `json:"timeout_seconds"`
	Sides          int `json:"sides"`
	RewardMin      int `json:"reward_min"`
	RewardMax      int `json:"reward_max"`
}

// RumbleRules bound the join window and the reward.
type RumbleRules struct {
	WindowSeconds int `json:"window_seconds"`
	MinWindow     int `json:"min_window"`
	MaxWindow     int `json:"max_window"`
	RewardMin     int `json:"reward_min"`
	RewardMax     int `json:"reward_max"`
}

// ItemRule is the effect of a consumable.
type ItemRule struct {
	Heal int `json:"heal"`
}

// DefaultRules returns the rules used when no override is given.
// They match the defaults in rules.cue.
func DefaultRules() Rules {
	return Rules{
		Dungeon: DungeonRules{
			Width:        12,
			Height:       12,
			Floors:       3,
			MaxPlayers:   4,
			PlayerHP:     10,
			PlayerAttack: 3,
			EnemyHP:      5,
			EnemyAttack:  1,
			FloorBonus:   1,
			KillXP:       5,
			KillGold:     3,
		},
		Duel: DuelRules{
			TimeoutSeconds: 120,
			Sides:          20,
			RewardMin:      15,
			RewardMax:      30,
		},
		Rumble: RumbleRules{
			WindowSeconds: 20,
			MinWindow:     10,
			MaxWindow:     120,
			RewardMin:     15,
			RewardMax:     30,
		},
		Items: map[string]ItemRule{
			"potion": {Heal: 5},
			"herb":   {Heal: 2},
		},
	}
}

// LoadRules reads a CUE override file. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return ParseRules("", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules: %w", err)
	}
	return ParseRules(path, data)
}

// ParseRules unifies src with the embedded schema and decodes the result.
func ParseRules(filename string, src []byte) (Rules, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(rulesSchema, cue.Filename("rules.cue"))
	if err := schema.Err(); err != nil {
		return Rules{}, fmt.Errorf("compiling rules schema: %w", err)
	}

	v := schema
	if len(src) > 0 {
		if filename == "" {
			filename = "override.cue"
		}
		override := ctx.CompileBytes(src, cue.Filename(filename))
		if err := override.Err(); err != nil {
			return Rules{}, fmt.Errorf("compiling %s: %w", filename, err)
		}
		v = schema.Unify(override)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Rules{}, fmt.Errorf("validating rules: %w", err)
	}

	var r Rules
	if err := v.Decode(&r); err != nil {
		return Rules{}, fmt.Errorf("decoding rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("validating rules: %w", err)
	}
	return r, nil
}

// Validate checks cross-field constraints the schema does not express.
func (r *Rules) Validate() error {
	el := errors.NewErrorList()

	if r.Duel.RewardMax < r.Duel.RewardMin {
		el.Add(fmt.Errorf("duel reward_max %d below reward_min %d", r.Duel.RewardMax, r.Duel.RewardMin))
	}
	if r.Rumble.RewardMax < r.Rumble.RewardMin {
		el.Add(fmt.Errorf("rumble reward_max %d below reward_min %d", r.Rumble.RewardMax, r.Rumble.RewardMin))
	}
	if r.Rumble.MaxWindow < r.Rumble.MinWindow {
		el.Add(fmt.Errorf("rumble max_window %d below min_window %d", r.Rumble.MaxWindow, r.Rumble.MinWindow))
	}
	if r.Dungeon.Width*r.Dungeon.Height < 9 {
		el.Add(fmt.Errorf("dungeon grid %dx%d is too small", r.Dungeon.Width, r.Dungeon.Height))
	}

	return el.Err()
}

// ClampWindow bounds a requested rumble join window. Zero selects the
// default window.
func (r *Rules) ClampWindow(seconds int) int {
	if seconds == 0 {
		seconds = r.Rumble.WindowSeconds
	}
	if seconds < r.Rumble.MinWindow {
		return r.Rumble.MinWindow
	}
	if seconds > r.Rumble.MaxWindow {
		return r.Rumble.MaxWindow
	}
	return seconds
}
