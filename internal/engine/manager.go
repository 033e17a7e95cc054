package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// Manager owns every live session.
//
// Sessions are independent: they tick concurrently, and a fatal error in
// one halts only that one. Ended sessions leave the active set but their
// settlement log stays readable through Tail.
type Manager struct {
	rules  config.Rules
	ids    IDGenerator
	timer  *Timer
	sink   LogSink
	states StateStore
	pub    Publisher
	logger *slog.Logger

	maxPending int

	mu       sync.RWMutex
	sessions map[string]*Session
	ended    map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIDGenerator sets the session id generator (default UUIDv7).
func WithIDGenerator(g IDGenerator) ManagerOption {
	return func(m *Manager) { m.ids = g }
}

// WithTimer sets the deadline tracker. Tests pass a timer on a fake clock.
func WithTimer(t *Timer) ManagerOption {
	return func(m *Manager) { m.timer = t }
}

// WithLogSink persists settlements after every tick.
func WithLogSink(s LogSink) ManagerOption {
	return func(m *Manager) { m.sink = s }
}

// WithStateStore saves state after every committed tick.
func WithStateStore(s StateStore) ManagerOption {
	return func(m *Manager) { m.states = s }
}

// WithPublisher announces committed ticks.
func WithPublisher(p Publisher) ManagerOption {
	return func(m *Manager) { m.pub = p }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithMaxPending caps the intents one actor may queue per tick
// (default DefaultMaxPending). Zero or less disables the cap.
func WithMaxPending(n int) ManagerOption {
	return func(m *Manager) { m.maxPending = n }
}

// NewManager creates an empty manager.
func NewManager(rules config.Rules, opts ...ManagerOption) *Manager {
	m := &Manager{
		rules:      rules,
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
		maxPending: DefaultMaxPending,
		sessions:   map[string]*Session{},
		ended:      map[string]*Session{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.timer == nil {
		m.timer = NewTimer(nil)
	}
	return m
}

// Rules returns the game rules in effect.
func (m *Manager) Rules() config.Rules {
	return m.rules
}

func (m *Manager) newSession(id string, kind world.Kind, clock *Clock) *Session {
	s := newSession(id, kind, &m.rules, clock, m.maxPending)
	s.sink = m.sink
	s.states = m.states
	s.pub = m.pub
	s.logger = m.logger
	return s
}

// Create opens a session. The create intent is the session's first
// settlement (seq 1) and is applied on the first tick, so replay always
// starts from an empty state.
func (m *Manager) Create(ctx context.Context, in intent.Intent) (string, int64, error) {
	in.Kind = intent.KindCreate
	if in.Config == nil {
		return "", 0, invalidIntent(in, fmt.Errorf("%w: create requires a session config", ErrMalformed))
	}
	cfg := *in.Config
	if cfg.Seed == 0 {
		cfg.Seed = NewSeed()
	}
	in.Config = &cfg

	in.SessionID = m.ids.Generate()
	if err := in.Validate(); err != nil {
		return "", 0, invalidIntent(in, err)
	}

	s := m.newSession(in.SessionID, cfg.Kind, NewClock())
	seq, err := s.enqueue(in)
	if err != nil {
		return "", 0, err
	}

	m.mu.Lock()
	if _, exists := m.sessions[in.SessionID]; exists {
		m.mu.Unlock()
		return "", 0, invalidIntent(in, fmt.Errorf("session %s already exists", in.SessionID))
	}
	m.sessions[in.SessionID] = s
	m.mu.Unlock()

	switch cfg.Kind {
	case world.KindDuel:
		m.timer.Schedule(in.SessionID, intent.KindDuelTimeout, time.Duration(m.rules.Duel.TimeoutSeconds)*time.Second)
	case world.KindRumble:
		window := m.rules.ClampWindow(cfg.WindowSeconds)
		m.timer.Schedule(in.SessionID, intent.KindRumbleClose, time.Duration(window)*time.Second)
	}

	m.logger.Info("session created", "session", in.SessionID, "kind", cfg.Kind, "actor", in.ActorID, "seed", cfg.Seed)
	return in.SessionID, seq, nil
}

// Submit queues a player intent and returns its seq.
func (m *Manager) Submit(ctx context.Context, in intent.Intent) (int64, error) {
	s, err := m.session(in.SessionID)
	if err != nil {
		return 0, invalidIntent(in, err)
	}
	return s.Enqueue(in)
}

func (m *Manager) session(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	if s, ok := m.ended[id]; ok {
		if s.Halted() != nil {
			return nil, ErrSessionHalted
		}
		return nil, ErrSessionEnded
	}
	return nil, ErrUnknownSession
}

// Expire injects the synthetic intents whose deadlines passed.
func (m *Manager) Expire(ctx context.Context) int {
	injected := 0
	for _, d := range m.timer.Due() {
		s, err := m.session(d.SessionID)
		if err != nil {
			continue
		}
		seq, err := s.Inject(d.Kind)
		if err != nil {
			m.logger.Debug("deadline after session closed", "session", d.SessionID, "kind", d.Kind, "error", err)
			continue
		}
		m.logger.Info("deadline reached", "session", d.SessionID, "kind", d.Kind, "seq", seq)
		injected++
	}
	return injected
}

// Tick runs one tick of a single session.
func (m *Manager) Tick(ctx context.Context, id string) (*settlement.Report, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, fmt.Errorf("tick %s: %w", id, err)
	}
	report, err := s.Tick(ctx)
	m.retire(s)
	return report, err
}

// TickAll ticks every active session concurrently. Reports are returned in
// session id order; fatal errors of individual sessions are joined.
func (m *Manager) TickAll(ctx context.Context) ([]settlement.Report, error) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].id < sessions[j].id })

	reports := make([]*settlement.Report, len(sessions))
	errs := make([]error, len(sessions))
	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			reports[i], errs[i] = s.Tick(ctx)
		}(i, s)
	}
	wg.Wait()

	var out []settlement.Report
	for i, s := range sessions {
		m.retire(s)
		if reports[i] != nil {
			out = append(out, *reports[i])
		}
	}
	return out, errors.Join(errs...)
}

// retire moves an ended or halted session out of the active set.
func (m *Manager) retire(s *Session) {
	if !s.closed() {
		return
	}
	m.timer.Cancel(s.id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.id]; !ok {
		return
	}
	delete(m.sessions, s.id)
	m.ended[s.id] = s
	m.logger.Info("session retired", "session", s.id, "halted", s.Halted() != nil)
}

// Snapshot returns a read-only copy of a live session's state.
func (m *Manager) Snapshot(id string) (*world.State, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return s.Snapshot(), nil
}

// Tail returns settlements with seq > since. It works for ended sessions.
func (m *Manager) Tail(id string, since int64) ([]settlement.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s.log.Tail(since), nil
	}
	if s, ok := m.ended[id]; ok {
		return s.log.Tail(since), nil
	}
	return nil, fmt.Errorf("tail %s: %w", id, ErrUnknownSession)
}

// Sessions returns the ids of active sessions in ascending order.
func (m *Manager) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Restore rebuilds a session from its stored settlements by replaying
// them and checks the result against the saved state, when there is one.
// Ended or halted sessions are restored as read-only logs.
func (m *Manager) Restore(ctx context.Context, id string, entries []settlement.Entry) error {
	log, err := settlement.FromEntries(id, entries)
	if err != nil {
		return fmt.Errorf("restore %s: %w", id, err)
	}
	st, err := Replay(log, m.rules)
	if err != nil {
		return fmt.Errorf("restore %s: %w", id, err)
	}
	if err := m.checkSaved(ctx, st); err != nil {
		return fmt.Errorf("restore %s: %w", id, err)
	}

	s := m.newSession(id, st.Kind, NewClockAt(log.LastSeq()))
	s.state = st
	s.log = log
	s.persistedSeq = log.LastSeq()
	if halted := haltedBatch(log); halted != nil {
		s.halted = &FatalError{SessionID: id, Tick: halted[0].Tick, Err: errors.New(halted[0].Outcome.Reason)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; exists {
		return fmt.Errorf("restore %s: session already active", id)
	}
	if _, exists := m.ended[id]; exists {
		return fmt.Errorf("restore %s: session already retired", id)
	}
	if st.Ended() || s.halted != nil {
		reason := ErrSessionEnded
		if s.halted != nil {
			reason = ErrSessionHalted
		}
		s.queue.Close(reason)
		m.ended[id] = s
		return nil
	}
	m.sessions[id] = s
	m.rescheduleLocked(st)
	m.logger.Info("session restored", "session", id, "tick", st.Tick, "last_seq", log.LastSeq())
	return nil
}

// checkSaved compares a replayed state with the last saved one. A saved
// state at the same tick must have the same digest. Missing or older saves
// are expected after a crash and only logged.
func (m *Manager) checkSaved(ctx context.Context, replayed *world.State) error {
	if m.states == nil {
		return nil
	}
	saved, err := m.states.Load(ctx, replayed.SessionID)
	if err != nil {
		m.logger.Debug("no saved state to compare", "session", replayed.SessionID, "error", err)
		return nil
	}
	switch {
	case saved.Tick < replayed.Tick:
		m.logger.Info("saved state behind log", "session", replayed.SessionID, "saved_tick", saved.Tick, "log_tick", replayed.Tick)
		return nil
	case saved.Tick > replayed.Tick:
		m.logger.Warn("saved state ahead of log, settlements were lost",
			"session", replayed.SessionID, "saved_tick", saved.Tick, "log_tick", replayed.Tick)
		return nil
	}

	want, err := saved.Digest()
	if err != nil {
		return err
	}
	got, err := replayed.Digest()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("tick %d replays to digest %s, saved state has %s: %w", replayed.Tick, got, want, ErrNonDeterministic)
	}
	return nil
}

// rescheduleLocked restarts the deadline of a restored session. The full
// window is granted again since wall time is not part of the log.
func (m *Manager) rescheduleLocked(st *world.State) {
	switch {
	case st.Duel != nil && st.Duel.State == world.DuelProposed:
		m.timer.Schedule(st.SessionID, intent.KindDuelTimeout, time.Duration(m.rules.Duel.TimeoutSeconds)*time.Second)
	case st.Rumble != nil && !st.Rumble.Closed:
		m.timer.Schedule(st.SessionID, intent.KindRumbleClose, time.Duration(st.Rumble.WindowSeconds)*time.Second)
	}
}

// haltedBatch returns the fatal batch that ends a log, if any.
func haltedBatch(log *settlement.Log) []settlement.Entry {
	batches := log.Batches()
	if len(batches) == 0 {
		return nil
	}
	last := batches[len(batches)-1]
	if last[0].Outcome.Status == settlement.Fatal {
		return last
	}
	return nil
}
