// Package settlement records how each intent was resolved.
//
// The log is append-only and keyed by sequence number. Appending an entry
// whose sequence is already present is a no-op, so a crashed tick can be
// retried without duplicating settlements.
package settlement

import (
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/world"
)

// Status is the resolution result of a single intent.
type Status string

const (
	// Applied: the intent changed the world as requested.
	Applied Status = "applied"
	// Blocked: the intent was valid but lost a conflict (cell taken, wall).
	Blocked Status = "blocked"
	// Rejected: the intent was stale or not legal in the current state.
	Rejected Status = "rejected"
	// Fatal: the batch broke a world invariant and was discarded.
	Fatal Status = "fatal"
)

// Event is a side effect of an applied intent or of an AI step.
type Event struct {
	Type   string     `json:"type"`
	Actor  string     `json:"actor,omitempty"`
	Target string     `json:"target,omitempty"`
	Amount int        `json:"amount,omitempty"`
	From   *world.Pos `json:"from,omitempty"`
	To     *world.Pos `json:"to,omitempty"`
}

// Event types.
const (
	EventMoved      = "moved"
	EventDamaged    = "damaged"
	EventDowned     = "downed"
	EventHealed     = "healed"
	EventRevived    = "revived"
	EventJoined     = "joined"
	EventLeft       = "left"
	EventSpawned    = "spawned"
	EventFloor      = "floor"
	EventDuel       = "duel"
	EventRolled     = "rolled"
	EventEnded      = "ended"
	EventItemUsed   = "item_used"
	EventLeveled    = "leveled"
	EventRumbleWon  = "rumble_won"
	EventSessionNew = "session_created"
)

// Reward is an economy side effect handed to the profile collaborator.
// Level is set to the player's new level when the XP crossed a threshold.
type Reward struct {
	PlayerID string `json:"player_id"`
	XP       int    `json:"xp,omitempty"`
	Gold     int    `json:"gold,omitempty"`
	Level    int    `json:"level,omitempty"`
}

// Outcome is the settled result of one intent.
type Outcome struct {
	Status  Status   `json:"status"`
	Reason  string   `json:"reason,omitempty"`
	Events  []Event  `json:"events,omitempty"`
	Rewards []Reward `json:"rewards,omitempty"`
}

// Reject builds a Rejected outcome.
func Reject(reason string) Outcome {
	return Outcome{Status: Rejected, Reason: reason}
}

// Block builds a Blocked outcome.
func Block(reason string) Outcome {
	return Outcome{Status: Blocked, Reason: reason}
}

// Apply builds an Applied outcome carrying the given events.
func Apply(events ...Event) Outcome {
	return Outcome{Status: Applied, Events: events}
}

// Entry is one line of the settlement log.
type Entry struct {
	SessionID string        `json:"session_id"`
	Seq       int64         `json:"seq"`
	Tick      int64         `json:"tick"`
	Intent    intent.Intent `json:"intent"`
	Outcome   Outcome       `json:"outcome"`
}

// Report summarises one committed tick for publishers and the CLI.
type Report struct {
	SessionID   string       `json:"session_id"`
	Tick        int64        `json:"tick"`
	Settlements []Entry      `json:"settlements"`
	AI          []Event      `json:"ai,omitempty"`
	Status      world.Status `json:"status"`
	Result      world.Result `json:"result,omitempty"`
	Digest      string       `json:"digest"`
	Halted      bool         `json:"halted,omitempty"`
}
