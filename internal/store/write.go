package store

import (
	"context"
	"fmt"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// AppendSettlements inserts a batch of settlements in one transaction.
// Uses ON CONFLICT(session_id, seq) DO NOTHING for idempotency - a batch
// retried after a failed write skips the rows already stored.
//
// The session row is registered from the create settlement, so the first
// batch of a session must contain seq 1.
func (s *Store) AppendSettlements(ctx context.Context, sessionID string, entries []settlement.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append settlements: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, e := range entries {
		if e.SessionID != sessionID {
			return fmt.Errorf("append settlements: seq %d belongs to session %s, not %s", e.Seq, e.SessionID, sessionID)
		}
		if e.Intent.Kind == intent.KindCreate && e.Intent.Config != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sessions (id, kind, creator, seed)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING
			`, sessionID, string(e.Intent.Config.Kind), e.Intent.ActorID, e.Intent.Config.Seed); err != nil {
				return fmt.Errorf("append settlements: register session: %w", err)
			}
		}

		intentJSON, err := marshalIntent(e.Intent)
		if err != nil {
			return fmt.Errorf("append settlements: %w", err)
		}
		outcomeJSON, err := marshalOutcome(e.Outcome)
		if err != nil {
			return fmt.Errorf("append settlements: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO settlements
			(session_id, seq, tick, actor_id, kind, status, intent, outcome)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, seq) DO NOTHING
		`,
			sessionID,
			e.Seq,
			e.Tick,
			e.Intent.ActorID,
			string(e.Intent.Kind),
			string(e.Outcome.Status),
			intentJSON,
			outcomeJSON,
		)
		if err != nil {
			return fmt.Errorf("append settlements: seq %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append settlements: commit: %w", err)
	}
	return nil
}

// Save upserts the committed state of a session together with its digest.
// Older ticks never overwrite newer ones.
func (s *Store) Save(ctx context.Context, st *world.State) error {
	stateJSON, err := marshalState(st)
	if err != nil {
		return fmt.Errorf("save %s: %w", st.SessionID, err)
	}
	digest, err := st.Digest()
	if err != nil {
		return fmt.Errorf("save %s: %w", st.SessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, status, result, tick, last_seq, digest, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			tick = excluded.tick,
			last_seq = excluded.last_seq,
			digest = excluded.digest,
			state = excluded.state
		WHERE excluded.tick >= snapshots.tick
	`,
		st.SessionID,
		string(st.Status),
		string(st.Result),
		st.Tick,
		st.LastSeq,
		digest,
		stateJSON,
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", st.SessionID, err)
	}
	return nil
}
