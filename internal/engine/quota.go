package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/intents/internal/intent"
)

// DefaultMaxPending is the per-actor queue quota when none is configured.
const DefaultMaxPending = 32

// actorQuota caps the number of intents one actor may have queued in a
// session between two ticks. It guards a session against a single client
// flooding its batch; the system actor is exempt.
//
// Not safe for concurrent use: the queue calls it with its mutex held.
type actorQuota struct {
	max     int
	pending map[string]int
}

// newActorQuota creates a quota with the given limit. max <= 0 disables it.
func newActorQuota(max int) *actorQuota {
	return &actorQuota{max: max, pending: map[string]int{}}
}

// take reserves one slot for actor or returns a *QuotaExceededError.
func (q *actorQuota) take(actor string) error {
	if q.max <= 0 || actor == intent.SystemActor {
		return nil
	}
	if q.pending[actor] >= q.max {
		return &QuotaExceededError{ActorID: actor, Pending: q.pending[actor], Limit: q.max}
	}
	q.pending[actor]++
	return nil
}

// reset frees every slot. Called when the batch is drained.
func (q *actorQuota) reset() {
	clear(q.pending)
}

// QuotaExceededError is returned when an actor already has the maximum
// number of intents waiting for the next tick.
type QuotaExceededError struct {
	ActorID string
	Pending int
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("actor %s has %d intents pending, limit %d", e.ActorID, e.Pending, e.Limit)
}

// IsQuotaExceeded returns true if the error is a QuotaExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
