package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/intents/internal/intent"
)

// Deadline is a wall-clock trigger that injects a synthetic intent.
type Deadline struct {
	SessionID string
	Kind      intent.Kind
	At        time.Time
}

// Timer tracks duel timeouts and rumble join windows.
//
// Wall time only decides when a synthetic intent is injected. Once queued
// it gets a seq like any other intent, so replay never consults the clock.
type Timer struct {
	mu        sync.Mutex
	now       func() time.Time
	deadlines map[string]Deadline
}

// NewTimer creates a timer reading wall time from now.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, deadlines: map[string]Deadline{}}
}

// Now returns the timer's current wall time.
func (t *Timer) Now() time.Time {
	return t.now()
}

// Schedule sets the session's deadline, replacing any earlier one.
func (t *Timer) Schedule(sessionID string, kind intent.Kind, after time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadlines[sessionID] = Deadline{SessionID: sessionID, Kind: kind, At: t.now().Add(after)}
}

// Cancel drops the session's deadline.
func (t *Timer) Cancel(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.deadlines, sessionID)
}

// Due removes and returns every expired deadline, ordered by session id.
func (t *Timer) Due() []Deadline {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var due []Deadline
	for id, d := range t.deadlines {
		if !now.Before(d.At) {
			due = append(due, d)
			delete(t.deadlines, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].SessionID < due[j].SessionID })
	return due
}

// Pending returns the number of scheduled deadlines.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.deadlines)
}
