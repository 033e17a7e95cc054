package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

func TestAppendSettlements_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entries := createTestLog("s1")

	if err := s.AppendSettlements(ctx, "s1", entries[:2]); err != nil {
		t.Fatalf("first append: %v", err)
	}
	// A retried batch overlaps with stored rows.
	if err := s.AppendSettlements(ctx, "s1", entries); err != nil {
		t.Fatalf("retried append: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM settlements WHERE session_id = 's1'").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("settlement rows = %d, want 3", count)
	}
}

func TestAppendSettlements_RequiresRegisteredSession(t *testing.T) {
	s := createTestStore(t)
	entries := createTestLog("s1")

	if err := s.AppendSettlements(context.Background(), "s1", entries[1:]); err == nil {
		t.Fatal("expected foreign key error for a session without its create settlement")
	}
}

func TestAppendSettlements_SessionMismatch(t *testing.T) {
	s := createTestStore(t)
	entries := createTestLog("s1")

	if err := s.AppendSettlements(context.Background(), "s2", entries); err == nil {
		t.Fatal("expected error for entries of another session")
	}
}

func TestAppendSettlements_Empty(t *testing.T) {
	s := createTestStore(t)
	if err := s.AppendSettlements(context.Background(), "s1", nil); err != nil {
		t.Errorf("empty append = %v", err)
	}
}

func TestSave_LoadRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	st := world.Empty("s1")
	st.Kind = world.KindDungeon
	st.Status = world.StatusRunning
	st.Tick = 4
	st.LastSeq = 9
	st.InitGrid(4, 3, true, []world.Pos{{X: 2, Y: 1}})
	if err := st.Place(&world.Entity{ID: "A", Kind: world.EntityPlayer, Pos: world.Pos{X: 1, Y: 1}, HP: 10, MaxHP: 10, Alive: true}); err != nil {
		t.Fatal(err)
	}

	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	snap, err := s.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	want, _ := st.Digest()
	if snap.Digest != want {
		t.Errorf("stored digest = %s, want %s", snap.Digest, want)
	}
	got, _ := snap.State.Digest()
	if got != want {
		t.Errorf("loaded state digest = %s, want %s", got, want)
	}
	if id, ok := snap.State.Occupant(world.Pos{X: 1, Y: 1}); !ok || id != "A" {
		t.Errorf("occupancy not rebuilt on load: %q %v", id, ok)
	}
}

func TestSave_NeverRegresses(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	st := world.Empty("s1")
	st.Tick = 5
	if err := s.Save(ctx, st); err != nil {
		t.Fatal(err)
	}
	old := world.Empty("s1")
	old.Tick = 3
	if err := s.Save(ctx, old); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tick != 5 {
		t.Errorf("tick = %d, want 5", got.Tick)
	}
}

func TestLoad_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Load(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestMarshalOutcome_Canonical(t *testing.T) {
	out := settlement.Apply(settlement.Event{Type: settlement.EventMoved, Actor: "A", To: &world.Pos{X: 1, Y: 0}})
	a, err := marshalOutcome(out)
	if err != nil {
		t.Fatal(err)
	}
	b, err := marshalOutcome(out)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("canonical outcome not stable:\n%s\n%s", a, b)
	}
	back, err := unmarshalOutcome(a)
	if err != nil {
		t.Fatal(err)
	}
	if back.Events[0].To == nil || *back.Events[0].To != (world.Pos{X: 1, Y: 0}) {
		t.Errorf("event position lost: %+v", back.Events[0])
	}
}
