package engine

import "sync/atomic"

// Clock is the per-session logical clock that stamps intents with their
// sequence number.
//
// Sequence numbers are strictly increasing and never reused. They are the
// only tie-break authority during resolution, so two runs that assign the
// same numbers to the same intents settle identically regardless of wall
// time or goroutine scheduling.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
// Used when a session is restored from its stored log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last assigned sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
