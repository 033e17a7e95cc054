package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// LogSink durably stores settlements. AppendSettlements must be idempotent
// by (session, seq): a tick whose write failed is retried on the next tick.
type LogSink interface {
	AppendSettlements(ctx context.Context, sessionID string, entries []settlement.Entry) error
}

// StateStore saves committed session state after every tick. Restore
// loads it back to check the replayed state.
type StateStore interface {
	Load(ctx context.Context, sessionID string) (*world.State, error)
	Save(ctx context.Context, st *world.State) error
}

// Publisher announces committed ticks.
type Publisher interface {
	PublishTick(ctx context.Context, report settlement.Report) error
}

// Session is one game instance: its queue, its state and its log.
//
// Thread-safety model:
//   - Enqueue/Inject: safe from any goroutine
//   - Tick: serialized by the session mutex, one tick at a time
//   - Snapshot/Tail: safe from any goroutine; a tick's entries are appended
//     as one batch, so Tail never returns part of a tick
type Session struct {
	id   string
	kind world.Kind

	mu    sync.Mutex
	clock *Clock
	queue *intentQueue
	state *world.State
	log   *settlement.Log
	rules *config.Rules

	halted       error
	persistedSeq int64

	sink   LogSink
	states StateStore
	pub    Publisher
	logger *slog.Logger
}

func newSession(id string, kind world.Kind, rules *config.Rules, clock *Clock, maxPending int) *Session {
	return &Session{
		id:     id,
		kind:   kind,
		clock:  clock,
		queue:  newIntentQueue(clock, maxPending),
		state:  world.Empty(id),
		log:    settlement.NewLog(id),
		rules:  rules,
		logger: slog.Default(),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Kind returns the game the session runs.
func (s *Session) Kind() world.Kind {
	return s.kind
}

// Enqueue validates a player intent and assigns its seq.
func (s *Session) Enqueue(in intent.Intent) (int64, error) {
	if in.Kind.Synthetic() || in.Kind == intent.KindCreate {
		return 0, invalidIntent(in, fmt.Errorf("%w: %s cannot be submitted", ErrKindMismatch, in.Kind))
	}
	return s.enqueue(in)
}

// Inject queues a synthetic intent issued by the system actor. It shares
// the session clock with player intents, so a timeout racing a player
// decision is ordered by seq like any other conflict.
func (s *Session) Inject(kind intent.Kind) (int64, error) {
	return s.enqueue(intent.Intent{SessionID: s.id, ActorID: intent.SystemActor, Kind: kind})
}

func (s *Session) enqueue(in intent.Intent) (int64, error) {
	if in.SessionID != s.id {
		return 0, invalidIntent(in, ErrUnknownSession)
	}
	if err := in.Validate(); err != nil {
		return 0, invalidIntent(in, err)
	}
	if in.Kind != intent.KindCreate && !in.Kind.AllowedIn(s.kind) {
		return 0, invalidIntent(in, fmt.Errorf("%w: %s in a %s session", ErrKindMismatch, in.Kind, s.kind))
	}
	seq, err := s.queue.Enqueue(in)
	if err != nil {
		return 0, invalidIntent(in, err)
	}
	s.logger.Debug("intent queued", "session", s.id, "seq", seq, "kind", in.Kind, "actor", in.ActorID)
	return seq, nil
}

// Pending returns the number of queued intents.
func (s *Session) Pending() int {
	return s.queue.Len()
}

// Tick drains the queue and settles the batch.
//
// The batch resolves against a clone. If the clone fails its invariant
// check, the session halts: the committed state is kept, every intent of
// the batch is logged as fatal, and a *FatalError is returned. An empty
// queue produces no tick and a nil report.
func (s *Session) Tick(ctx context.Context) (*settlement.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted != nil {
		return nil, nil
	}

	batch := s.queue.Drain()
	if len(batch) == 0 {
		s.persist(ctx, false)
		return nil, nil
	}

	tick := s.state.Tick + 1
	next := s.state.Clone()
	res := Resolve(next, batch, tick, s.rules)

	if err := next.Check(); err != nil {
		return s.halt(ctx, batch, tick, err)
	}

	if err := s.log.AppendBatch(res.Entries); err != nil {
		return s.halt(ctx, batch, tick, err)
	}
	s.state = next
	report := s.report(tick, res)
	s.logger.Info("tick settled",
		"session", s.id, "tick", tick, "intents", len(batch), "status", next.Status, "digest", report.Digest)

	// Intents accepted while this batch resolved still hold a seq receipt.
	// They settle against the ended state as a tick of their own, so replay
	// resolves them the same way.
	var late *settlement.Report
	if next.Ended() {
		if stragglers := s.queue.Close(ErrSessionEnded); len(stragglers) > 0 {
			late = s.settleLate(stragglers, tick+1)
		}
	}

	s.persist(ctx, true)
	s.publish(ctx, report)
	if late != nil {
		s.publish(ctx, *late)
	}
	return &report, nil
}

func (s *Session) report(tick int64, res Resolution) settlement.Report {
	digest, err := s.state.Digest()
	if err != nil {
		s.logger.Error("state digest failed", "session", s.id, "tick", tick, "error", err)
	}
	return settlement.Report{
		SessionID:   s.id,
		Tick:        tick,
		Settlements: res.Entries,
		AI:          res.AI,
		Status:      s.state.Status,
		Result:      s.state.Result,
		Digest:      digest,
	}
}

// settleLate rejects intents that reached the queue after the tick that
// ended the session.
func (s *Session) settleLate(late []intent.Intent, tick int64) *settlement.Report {
	next := s.state.Clone()
	res := Resolve(next, late, tick, s.rules)
	if err := s.log.AppendBatch(res.Entries); err != nil {
		s.logger.Error("append late settlements", "session", s.id, "tick", tick, "error", err)
		return nil
	}
	s.state = next
	s.logger.Info("late intents rejected", "session", s.id, "tick", tick, "intents", len(late))
	report := s.report(tick, res)
	return &report
}

func (s *Session) halt(ctx context.Context, batch []intent.Intent, tick int64, cause error) (*settlement.Report, error) {
	fatal := &FatalError{SessionID: s.id, Tick: tick, Err: cause}
	s.halted = fatal
	// Intents queued during the failed tick go down with it.
	batch = append(batch, s.queue.Close(ErrSessionHalted)...)

	entries := make([]settlement.Entry, 0, len(batch))
	for _, in := range batch {
		_ = in.MarkProcessed()
		e := settlement.Entry{
			SessionID: s.id,
			Seq:       in.Seq,
			Tick:      tick,
			Intent:    in,
			Outcome:   settlement.Outcome{Status: settlement.Fatal, Reason: cause.Error()},
		}
		if _, err := s.log.Append(e); err != nil {
			s.logger.Error("append fatal settlement", "session", s.id, "seq", in.Seq, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	s.logger.Error("session halted", "session", s.id, "tick", tick, "error", cause)

	s.persist(ctx, false)
	report := settlement.Report{
		SessionID:   s.id,
		Tick:        tick,
		Settlements: entries,
		Status:      s.state.Status,
		Halted:      true,
	}
	s.publish(ctx, report)
	return &report, fatal
}

// persist writes settlements past the watermark and, when saveState is set,
// the committed state. Failures are logged and retried on the next tick.
func (s *Session) persist(ctx context.Context, saveState bool) {
	if s.sink != nil {
		if pending := s.log.Tail(s.persistedSeq); len(pending) > 0 {
			if err := s.sink.AppendSettlements(ctx, s.id, pending); err != nil {
				s.logger.Warn("settlement write failed, will retry", "session", s.id, "from_seq", pending[0].Seq, "error", err)
			} else {
				s.persistedSeq = pending[len(pending)-1].Seq
			}
		}
	}
	if saveState && s.states != nil {
		if err := s.states.Save(ctx, s.state); err != nil {
			s.logger.Warn("state save failed", "session", s.id, "tick", s.state.Tick, "error", err)
		}
	}
}

func (s *Session) publish(ctx context.Context, report settlement.Report) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishTick(ctx, report); err != nil {
		s.logger.Warn("publish tick failed", "session", s.id, "tick", report.Tick, "error", err)
	}
}

// Snapshot returns a copy of the committed state.
func (s *Session) Snapshot() *world.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Ended reports whether the session reached a terminal status.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Ended()
}

// Halted returns the fatal error that stopped the session, if any.
func (s *Session) Halted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Log returns the session's settlement log.
func (s *Session) Log() *settlement.Log {
	return s.log
}

// closed reports whether the session accepts no more intents.
func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Ended() || s.halted != nil
}
