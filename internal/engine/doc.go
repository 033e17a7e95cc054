// Package engine implements the intent queue and the solver loop.
//
// Players do not mutate the world. They submit intents, which are stamped
// with a per-session sequence number and settled in batches, one batch per
// tick.
//
// ARCHITECTURE:
//
// Per-Session Tick:
// Each session has its own queue, clock, state and settlement log. A tick
// holds the session mutex for the whole drain → resolve → check → commit
// → persist sequence, so two ticks of one session never overlap. Different
// sessions tick concurrently.
//
// Resolution Flow:
//  1. Drain the queue (already in seq order)
//  2. Resolve state intents, then movement, then actions, each by seq
//  3. Run the enemy AI step (running dungeons, non-empty batches only)
//  4. Evaluate victory and defeat
//  5. Check world invariants on the resolved clone
//  6. Commit the clone and append settlements, or halt the session
//
// CRITICAL PATTERNS:
//
//   - Seq is the only tie-break. Arrival order outside the queue mutex,
//     wall time and goroutine scheduling never influence an outcome.
//   - Randomness is seeded from (session seed, triggering seq), so replay
//     through Resolve reproduces every roll.
//   - A failed tick never leaks: the committed state is only replaced by a
//     clone that passed State.Check.
package engine
