package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// ReadSettlements returns the settlements of a session with seq > since.
// Results are ordered by seq ASC.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadSettlements(ctx context.Context, sessionID string, since int64) ([]settlement.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, tick, intent, outcome
		FROM settlements
		WHERE session_id = ? AND seq > ?
		ORDER BY seq ASC
	`, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	defer rows.Close()

	entries := []settlement.Entry{}
	for rows.Next() {
		var (
			e                       settlement.Entry
			intentJSON, outcomeJSON string
		)
		if err := rows.Scan(&e.Seq, &e.Tick, &intentJSON, &outcomeJSON); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		e.SessionID = sessionID
		if e.Intent, err = unmarshalIntent(intentJSON); err != nil {
			return nil, fmt.Errorf("seq %d: %w", e.Seq, err)
		}
		if e.Outcome, err = unmarshalOutcome(outcomeJSON); err != nil {
			return nil, fmt.Errorf("seq %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlements: %w", err)
	}
	return entries, nil
}

// ReadLog loads a session's full settlement log.
func (s *Store) ReadLog(ctx context.Context, sessionID string) (*settlement.Log, error) {
	entries, err := s.ReadSettlements(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", sessionID, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("read log %s: %w", sessionID, ErrNotFound)
	}
	return settlement.FromEntries(sessionID, entries)
}

// Load returns the latest saved state of a session, or ErrNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) (*world.State, error) {
	snap, err := s.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return snap.State, nil
}

// Snapshot is a saved state with the digest recorded when it was saved.
type Snapshot struct {
	State  *world.State
	Digest string
}

// Snapshot returns the latest saved state and its recorded digest.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	var digest, stateJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT digest, state FROM snapshots WHERE session_id = ?
	`, sessionID).Scan(&digest, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", sessionID, err)
	}
	st, err := unmarshalState(stateJSON)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", sessionID, err)
	}
	return Snapshot{State: st, Digest: digest}, nil
}

// SessionSummary describes one stored session.
type SessionSummary struct {
	ID      string
	Kind    world.Kind
	Creator string
	LastSeq int64
	// Status and Result are empty when no snapshot was saved.
	Status world.Status
	Result world.Result
}

// ListSessions returns every registered session ordered by id.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.kind, s.creator,
		       COALESCE((SELECT MAX(seq) FROM settlements WHERE session_id = s.id), 0),
		       COALESCE(p.status, ''), COALESCE(p.result, '')
		FROM sessions s
		LEFT JOIN snapshots p ON p.session_id = s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		var (
			sum                  SessionSummary
			kind, status, result string
		)
		if err := rows.Scan(&sum.ID, &kind, &sum.Creator, &sum.LastSeq, &status, &result); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Kind = world.Kind(kind)
		sum.Status = world.Status(status)
		sum.Result = world.Result(result)
		sessions = append(sessions, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
