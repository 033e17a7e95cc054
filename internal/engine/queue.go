package engine

import (
	"sync"

	"github.com/roach88/intents/internal/intent"
)

// intentQueue holds the pending intents of one session.
//
// Sequence numbers are taken from the session clock while the queue mutex is
// held, so the pending slice is always in ascending seq order and Drain
// never needs to sort.
//
// Thread-safety: Enqueue may be called from any goroutine. Drain is only
// called by the session's tick, which holds the session mutex.
type intentQueue struct {
	mu      sync.Mutex
	clock   *Clock
	quota   *actorQuota
	pending []intent.Intent
	closed  error
}

func newIntentQueue(clock *Clock, maxPending int) *intentQueue {
	return &intentQueue{
		clock:   clock,
		quota:   newActorQuota(maxPending),
		pending: make([]intent.Intent, 0, 16),
	}
}

// Enqueue stamps the intent with the next seq and appends it.
// It returns the close reason once the queue is closed, or a
// *QuotaExceededError when the actor has too many intents waiting.
func (q *intentQueue) Enqueue(in intent.Intent) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed != nil {
		return 0, q.closed
	}
	if err := q.quota.take(in.ActorID); err != nil {
		return 0, err
	}

	in.Seq = q.clock.Next()
	in.Processed = false
	q.pending = append(q.pending, in)
	return in.Seq, nil
}

// Drain removes and returns every pending intent in seq order.
func (q *intentQueue) Drain() []intent.Intent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	batch := q.pending
	q.quota.reset()
	q.pending = make([]intent.Intent, 0, cap(batch))
	return batch
}

// Len returns the number of pending intents.
func (q *intentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close refuses further intents with reason. Pending intents are dropped;
// the first reason wins.
func (q *intentQueue) Close(reason error) []intent.Intent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed != nil {
		return nil
	}
	q.closed = reason
	dropped := q.pending
	q.pending = nil
	return dropped
}
