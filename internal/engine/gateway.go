package engine

import (
	"context"
	"fmt"

	"github.com/roach88/intents/internal/intent"
)

// Submission is an intent as it arrives from the dispatcher, together with
// the authenticated principal that sent it.
type Submission struct {
	SessionID string                `json:"session_id,omitempty"`
	Principal string                `json:"principal"`
	ActorID   string                `json:"actor_id"`
	Kind      intent.Kind           `json:"kind"`
	Direction string                `json:"direction,omitempty"`
	TargetID  string                `json:"target_id,omitempty"`
	ItemRef   string                `json:"item_ref,omitempty"`
	Level     int                   `json:"level,omitempty"`
	Items     map[string]int        `json:"items,omitempty"`
	Config    *intent.SessionConfig `json:"config,omitempty"`
}

// Receipt acknowledges a queued intent.
type Receipt struct {
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// Gateway is the dispatcher boundary: it authenticates submissions,
// normalizes their payload and queues them.
type Gateway struct {
	manager *Manager
}

// NewGateway creates a gateway in front of m.
func NewGateway(m *Manager) *Gateway {
	return &Gateway{manager: m}
}

// Submit queues a submission. Create submissions open a new session.
func (g *Gateway) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	in, err := g.intent(sub)
	if err != nil {
		return Receipt{}, err
	}
	if in.Kind == intent.KindCreate {
		id, seq, err := g.manager.Create(ctx, in)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{SessionID: id, Seq: seq}, nil
	}
	seq, err := g.manager.Submit(ctx, in)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{SessionID: in.SessionID, Seq: seq}, nil
}

// Create opens a session on behalf of the submission's actor.
func (g *Gateway) Create(ctx context.Context, sub Submission) (Receipt, error) {
	sub.Kind = intent.KindCreate
	return g.Submit(ctx, sub)
}

func (g *Gateway) intent(sub Submission) (intent.Intent, error) {
	in := intent.Intent{
		SessionID: sub.SessionID,
		ActorID:   sub.ActorID,
		Kind:      sub.Kind,
		TargetID:  sub.TargetID,
		ItemRef:   sub.ItemRef,
		Level:     sub.Level,
		Items:     sub.Items,
		Config:    sub.Config,
	}
	if err := authenticate(sub); err != nil {
		return in, invalidIntent(in, err)
	}
	if sub.Kind == intent.KindMove {
		dir, err := intent.ParseDirection(sub.Direction)
		if err != nil {
			return in, invalidIntent(in, fmt.Errorf("%w: %v", ErrMalformed, err))
		}
		in.Direction = dir
	}
	return in, nil
}

// authenticate requires the principal to speak for the actor. The system
// actor is reserved for synthetic intents.
func authenticate(sub Submission) error {
	switch {
	case sub.Principal == "":
		return fmt.Errorf("%w: missing principal", ErrUnauthenticated)
	case sub.ActorID == intent.SystemActor:
		return fmt.Errorf("%w: actor %q is reserved", ErrUnauthenticated, intent.SystemActor)
	case sub.Principal != sub.ActorID:
		return fmt.Errorf("%w: %s cannot act as %s", ErrUnauthenticated, sub.Principal, sub.ActorID)
	}
	return nil
}
