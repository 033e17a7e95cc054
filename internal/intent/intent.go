// Package intent defines the player action value objects that the solver
// settles.
//
// An Intent is created by the dispatcher, receives its sequence number when
// it enters a session queue, is consumed exactly once by the solver, and from
// then on lives only inside the settlement log.
package intent

import (
	"errors"
	"fmt"

	"github.com/roach88/intents/internal/world"
)

// SystemActor is the actor id carried by synthetic intents such as duel
// timeouts. The gateway refuses it for external submissions.
const SystemActor = "system"

// ErrAlreadyProcessed is returned when an intent is marked processed twice.
var ErrAlreadyProcessed = errors.New("intent already processed")

// ErrMalformed is wrapped by Validate failures.
var ErrMalformed = errors.New("malformed intent")

// Intent is one requested player action.
type Intent struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	ActorID   string `json:"actor_id" yaml:"actor"`
	Kind      Kind   `json:"kind" yaml:"kind"`

	// Seq is assigned at enqueue time and is the only tie-break authority.
	Seq int64 `json:"seq" yaml:"-"`

	Direction Direction      `json:"direction,omitempty" yaml:"direction,omitempty"`
	TargetID  string         `json:"target_id,omitempty" yaml:"target,omitempty"`
	ItemRef   string         `json:"item_ref,omitempty" yaml:"item,omitempty"`
	Level     int            `json:"level,omitempty" yaml:"level,omitempty"`
	Items     map[string]int `json:"items,omitempty" yaml:"items,omitempty"`
	Config    *SessionConfig `json:"config,omitempty" yaml:"config,omitempty"`

	Processed bool `json:"processed" yaml:"-"`
}

// MarkProcessed sets Processed. It fails if the intent was already settled.
func (i *Intent) MarkProcessed() error {
	if i.Processed {
		return fmt.Errorf("seq %d: %w", i.Seq, ErrAlreadyProcessed)
	}
	i.Processed = true
	return nil
}

// Phase returns the resolution phase of the intent's kind.
func (i Intent) Phase() Phase {
	return i.Kind.Phase()
}

// Validate checks the payload shape. It does not look at session state;
// that is the solver's job.
func (i Intent) Validate() error {
	if i.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrMalformed)
	}
	if i.ActorID == "" {
		return fmt.Errorf("%w: missing actor id", ErrMalformed)
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, i.Kind)
	}
	if i.Kind.Synthetic() && i.ActorID != SystemActor {
		return fmt.Errorf("%w: %s may only be issued by %s", ErrMalformed, i.Kind, SystemActor)
	}

	switch i.Kind {
	case KindCreate:
		if i.Config == nil {
			return fmt.Errorf("%w: create requires a session config", ErrMalformed)
		}
		if err := i.Config.Validate(i.ActorID); err != nil {
			return err
		}
	case KindMove:
		if _, err := ParseDirection(string(i.Direction)); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case KindUseItem:
		if i.ItemRef == "" {
			return fmt.Errorf("%w: item.use requires an item", ErrMalformed)
		}
	}

	for name, n := range i.Items {
		if n < 0 {
			return fmt.Errorf("%w: negative item count for %s", ErrMalformed, name)
		}
	}
	return nil
}

// EnemySpawn places an enemy explicitly on the first floor.
type EnemySpawn struct {
	ID  string    `json:"id" yaml:"id"`
	Pos world.Pos `json:"pos" yaml:",inline"`
	HP  int       `json:"hp,omitempty" yaml:"hp,omitempty"`
}

// SessionConfig is the payload of a create intent. Zero values fall back to
// the game rules.
type SessionConfig struct {
	Kind world.Kind `json:"kind" yaml:"kind"`
	Seed int64      `json:"seed" yaml:"seed"`

	// Duel.
	Invitee string `json:"invitee,omitempty" yaml:"invitee,omitempty"`

	// Rumble.
	WindowSeconds int `json:"window_seconds,omitempty" yaml:"window_seconds,omitempty"`

	// Dungeon.
	Width     int          `json:"width,omitempty" yaml:"width,omitempty"`
	Height    int          `json:"height,omitempty" yaml:"height,omitempty"`
	NoBorder  bool         `json:"no_border,omitempty" yaml:"no_border,omitempty"`
	Floors    int          `json:"floors,omitempty" yaml:"floors,omitempty"`
	Spawns    []world.Pos  `json:"spawns,omitempty" yaml:"spawns,omitempty"`
	Obstacles []world.Pos  `json:"obstacles,omitempty" yaml:"obstacles,omitempty"`
	Enemies   []EnemySpawn `json:"enemies,omitempty" yaml:"enemies,omitempty"`
}

// Validate checks the config against the creating actor.
func (c *SessionConfig) Validate(creator string) error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unknown session kind %q", ErrMalformed, c.Kind)
	}
	switch c.Kind {
	case world.KindDuel:
		if c.Invitee == "" {
			return fmt.Errorf("%w: duel requires an invitee", ErrMalformed)
		}
		if c.Invitee == creator {
			return fmt.Errorf("%w: cannot duel yourself", ErrMalformed)
		}
	case world.KindDungeon:
		if c.Width < 0 || c.Height < 0 || c.Floors < 0 {
			return fmt.Errorf("%w: negative dungeon dimensions", ErrMalformed)
		}
		seen := map[string]bool{}
		for _, e := range c.Enemies {
			if e.ID == "" {
				return fmt.Errorf("%w: enemy spawn without id", ErrMalformed)
			}
			if seen[e.ID] {
				return fmt.Errorf("%w: duplicate enemy id %s", ErrMalformed, e.ID)
			}
			seen[e.ID] = true
		}
	}
	return nil
}
