package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/intents/internal/settlement"
)

// Recovery is what the store knows about a session after a restart.
type Recovery struct {
	SessionID string
	Entries   []settlement.Entry
	LastSeq   int64
	LastTick  int64

	// Halted is true when the last stored batch was settled as fatal.
	Halted bool

	// SnapshotTick is the tick of the saved state, 0 when none was saved.
	// SnapshotStale is true when the log is ahead of the snapshot, which
	// happens when a state save failed after its settlements were written.
	SnapshotTick  int64
	SnapshotStale bool
}

// Recover loads the settlements and snapshot position of a session for
// restoring it into a running manager.
func (s *Store) Recover(ctx context.Context, sessionID string) (Recovery, error) {
	rec := Recovery{SessionID: sessionID}

	entries, err := s.ReadSettlements(ctx, sessionID, 0)
	if err != nil {
		return rec, fmt.Errorf("recover %s: %w", sessionID, err)
	}
	if len(entries) == 0 {
		return rec, fmt.Errorf("recover %s: %w", sessionID, ErrNotFound)
	}
	rec.Entries = entries

	last := entries[len(entries)-1]
	rec.LastSeq = last.Seq
	for _, e := range entries {
		if e.Tick > rec.LastTick {
			rec.LastTick = e.Tick
		}
	}
	rec.Halted = last.Outcome.Status == settlement.Fatal

	err = s.db.QueryRowContext(ctx, `
		SELECT tick FROM snapshots WHERE session_id = ?
	`, sessionID).Scan(&rec.SnapshotTick)
	if err != nil && !isNoRows(err) {
		return rec, fmt.Errorf("recover %s: snapshot tick: %w", sessionID, err)
	}

	// A halted batch never commits state, so its tick is not expected in
	// the snapshot.
	committed := rec.LastTick
	if rec.Halted {
		committed--
	}
	rec.SnapshotStale = rec.SnapshotTick < committed
	return rec, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
