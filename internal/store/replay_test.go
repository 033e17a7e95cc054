package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/engine"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

func TestRecover_TracksSnapshotLag(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.AppendSettlements(ctx, "s1", createTestLog("s1")); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Recover(ctx, "s1")
	if err != nil {
		t.Fatalf("Recover() failed: %v", err)
	}
	if rec.LastSeq != 3 || rec.LastTick != 2 || rec.Halted {
		t.Errorf("recovery = %+v", rec)
	}
	if rec.SnapshotTick != 0 || !rec.SnapshotStale {
		t.Errorf("missing snapshot should be stale: %+v", rec)
	}

	st := world.Empty("s1")
	st.Tick = 2
	if err := s.Save(ctx, st); err != nil {
		t.Fatal(err)
	}
	rec, err = s.Recover(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.SnapshotTick != 2 || rec.SnapshotStale {
		t.Errorf("snapshot should be current: %+v", rec)
	}
}

func TestRecover_HaltedBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entries := createTestLog("s1")[:1]
	entries = append(entries, createTestEntry("s1", 2, 2, intent.KindDuelAccept,
		settlement.Outcome{Status: settlement.Fatal, Reason: "invariant violated"}))
	if err := s.AppendSettlements(ctx, "s1", entries); err != nil {
		t.Fatal(err)
	}
	st := world.Empty("s1")
	st.Tick = 1
	if err := s.Save(ctx, st); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Recover(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Halted || rec.SnapshotStale {
		t.Errorf("recovery = %+v", rec)
	}
}

func TestRecover_NotFound(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.Recover(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Recover(missing) = %v, want ErrNotFound", err)
	}
}

// TestStore_BacksManager persists a live duel through the store and checks
// that the stored log replays to the stored digest.
func TestStore_BacksManager(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rules := config.DefaultRules()
	m := engine.NewManager(rules,
		engine.WithIDGenerator(engine.NewFixedGenerator("d1")),
		engine.WithLogSink(s),
		engine.WithStateStore(s),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	id, _, err := m.Create(ctx, intent.Intent{ActorID: "A", Config: &intent.SessionConfig{Kind: world.KindDuel, Invitee: "B", Seed: 21}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Submit(ctx, intent.Intent{SessionID: id, ActorID: "B", Kind: intent.KindDuelAccept, Level: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Tick(ctx, id); err != nil {
		t.Fatal(err)
	}

	log, err := s.ReadLog(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.State.Result != world.ResultSettled {
		t.Errorf("stored result = %q", snap.State.Result)
	}
	if _, err := engine.VerifyReplay(log, rules, snap.Digest); err != nil {
		t.Errorf("stored log does not replay to stored digest: %v", err)
	}
}
