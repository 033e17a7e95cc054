package engine

// # Replay
//
// Replay is structural, not a special mode: it feeds the recorded batches
// through the same Resolve used by live ticks.
//
//	world.Empty(id)
//	     ↓
//	[batch tick 1] → Resolve → compare outcomes with the log
//	     ↓
//	[batch tick 2] → Resolve → compare outcomes with the log
//	     ↓
//	    ...
//
// Three things make this reproduce the live state:
//
//  1. Session creation is itself the first intent, so replay starts from
//     an empty state and the seed arrives through the log.
//  2. Every random roll is seeded from (session seed, triggering seq).
//  3. Resolution order depends only on phase and seq, never on arrival
//     time or map iteration.
//
// A batch logged as fatal was never committed, so replay skips it.

import (
	"bytes"
	"fmt"

	"github.com/roach88/intents/internal/canon"
	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// Replay rebuilds a session's state from its settlement log. It fails with
// a *DivergenceError (wrapping ErrNonDeterministic) at the first intent
// whose replayed outcome differs from the recorded one.
func Replay(log *settlement.Log, rules config.Rules) (*world.State, error) {
	st := world.Empty(log.SessionID())

	for _, batch := range log.Batches() {
		if batch[0].Outcome.Status == settlement.Fatal {
			continue
		}

		intents := make([]intent.Intent, len(batch))
		for i, e := range batch {
			intents[i] = e.Intent
			intents[i].Seq = e.Seq
			intents[i].Processed = false
		}

		res := Resolve(st, intents, batch[0].Tick, &rules)
		if len(res.Entries) != len(batch) {
			return nil, fmt.Errorf("replay tick %d: %d settlements for %d intents", batch[0].Tick, len(res.Entries), len(batch))
		}
		for i, got := range res.Entries {
			want := batch[i]
			same, err := sameOutcome(want.Outcome, got.Outcome)
			if err != nil {
				return nil, fmt.Errorf("replay seq %d: %w", want.Seq, err)
			}
			if got.Seq != want.Seq || !same {
				return nil, &DivergenceError{
					SessionID: log.SessionID(),
					Seq:       want.Seq,
					Recorded:  want.Outcome,
					Replayed:  got.Outcome,
				}
			}
		}
	}
	return st, nil
}

// VerifyReplay replays the log and checks the result against a digest
// recorded from the live state.
func VerifyReplay(log *settlement.Log, rules config.Rules, digest string) (*world.State, error) {
	st, err := Replay(log, rules)
	if err != nil {
		return nil, err
	}
	got, err := st.Digest()
	if err != nil {
		return nil, err
	}
	if got != digest {
		return st, fmt.Errorf("session %s digest %s, recorded %s: %w", log.SessionID(), got, digest, ErrNonDeterministic)
	}
	return st, nil
}

func sameOutcome(a, b settlement.Outcome) (bool, error) {
	ca, err := canon.Marshal(a)
	if err != nil {
		return false, err
	}
	cb, err := canon.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}
