package intent

import (
	"fmt"
	"strings"

	"github.com/roach88/intents/internal/world"
)

// Kind names an intent type.
type Kind string

const (
	KindCreate  Kind = "create"
	KindStart   Kind = "start"
	KindLeave   Kind = "leave"
	KindAdvance Kind = "advance"

	KindDuelAccept  Kind = "duel.accept"
	KindDuelDecline Kind = "duel.decline"
	KindDuelCancel  Kind = "duel.cancel"
	KindDuelTimeout Kind = "duel.timeout"

	KindRumbleJoin  Kind = "rumble.join"
	KindRumbleClose Kind = "rumble.close"

	KindDungeonJoin Kind = "dungeon.join"
	KindMove        Kind = "move"
	KindAttack      Kind = "attack"
	KindUseItem     Kind = "item.use"
)

// Phase orders resolution inside a tick: state, then movement, then actions.
type Phase int

const (
	PhaseState Phase = iota + 1
	PhaseMove
	PhaseAction
)

func (p Phase) String() string {
	switch p {
	case PhaseState:
		return "state"
	case PhaseMove:
		return "move"
	case PhaseAction:
		return "action"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Phases lists the phases in execution order.
var Phases = []Phase{PhaseState, PhaseMove, PhaseAction}

// Phase returns the phase the kind resolves in.
func (k Kind) Phase() Phase {
	switch k {
	case KindMove:
		return PhaseMove
	case KindAttack, KindUseItem:
		return PhaseAction
	}
	return PhaseState
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := sessionKinds[k]
	return ok
}

// Synthetic reports whether the kind is only injected by time-based triggers.
func (k Kind) Synthetic() bool {
	return k == KindDuelTimeout
}

// AllowedIn reports whether the kind may be submitted to a session of the
// given kind.
func (k Kind) AllowedIn(sk world.Kind) bool {
	for _, allowed := range sessionKinds[k] {
		if allowed == sk {
			return true
		}
	}
	return false
}

var sessionKinds = map[Kind][]world.Kind{
	KindCreate:      {world.KindDuel, world.KindRumble, world.KindDungeon},
	KindStart:       {world.KindDungeon},
	KindLeave:       {world.KindRumble, world.KindDungeon},
	KindAdvance:     {world.KindDungeon},
	KindDuelAccept:  {world.KindDuel},
	KindDuelDecline: {world.KindDuel},
	KindDuelCancel:  {world.KindDuel},
	KindDuelTimeout: {world.KindDuel},
	KindRumbleJoin:  {world.KindRumble},
	KindRumbleClose: {world.KindRumble},
	KindDungeonJoin: {world.KindDungeon},
	KindMove:        {world.KindDungeon},
	KindAttack:      {world.KindDungeon},
	KindUseItem:     {world.KindDungeon},
}

// Direction is a movement direction.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection accepts the four names and the w/a/s/d aliases,
// case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "w":
		return Up, nil
	case "down", "s":
		return Down, nil
	case "left", "a":
		return Left, nil
	case "right", "d":
		return Right, nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}

// Vector returns the grid delta for d. Unknown directions yield (0, 0).
func (d Direction) Vector() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}
