package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates a settlement with minimal required fields.
func createTestEntry(sessionID string, seq, tick int64, kind intent.Kind, out settlement.Outcome) settlement.Entry {
	in := intent.Intent{SessionID: sessionID, ActorID: "A", Kind: kind, Seq: seq, Processed: true}
	if kind == intent.KindCreate {
		in.Config = &intent.SessionConfig{Kind: world.KindDuel, Seed: 7, Invitee: "B"}
	}
	return settlement.Entry{SessionID: sessionID, Seq: seq, Tick: tick, Intent: in, Outcome: out}
}

// createTestLog returns a three-settlement duel log: create, a rejected
// cancel by the wrong party, and an accepted decline.
func createTestLog(sessionID string) []settlement.Entry {
	return []settlement.Entry{
		createTestEntry(sessionID, 1, 1, intent.KindCreate, settlement.Apply(
			settlement.Event{Type: settlement.EventSessionNew, Actor: "A", Target: "duel"},
		)),
		createTestEntry(sessionID, 2, 2, intent.KindDuelDecline, settlement.Reject("only the invitee can decline")),
		createTestEntry(sessionID, 3, 2, intent.KindDuelCancel, settlement.Apply(
			settlement.Event{Type: settlement.EventDuel, Actor: "A", Target: "cancelled"},
		)),
	}
}
