package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/testutil"
	"github.com/roach88/intents/internal/world"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	m     *Manager
	clock *testutil.FakeClock
}

func newHarness(t *testing.T, rules config.Rules, ids ...string) *harness {
	t.Helper()
	clock := testutil.NewFakeClock(time.Time{})
	m := NewManager(rules,
		WithIDGenerator(NewFixedGenerator(ids...)),
		WithTimer(NewTimer(clock.Now)),
		WithLogger(quietLogger()),
	)
	return &harness{t: t, ctx: context.Background(), m: m, clock: clock}
}

func (h *harness) create(actor string, cfg *intent.SessionConfig) string {
	h.t.Helper()
	id, seq, err := h.m.Create(h.ctx, intent.Intent{ActorID: actor, Level: 1, Config: cfg})
	require.NoError(h.t, err)
	require.Equal(h.t, int64(1), seq, "create is always the first seq")
	return id
}

func (h *harness) submit(id, actor string, kind intent.Kind, opts ...func(*intent.Intent)) int64 {
	h.t.Helper()
	in := intent.Intent{SessionID: id, ActorID: actor, Kind: kind}
	for _, opt := range opts {
		opt(&in)
	}
	seq, err := h.m.Submit(h.ctx, in)
	require.NoError(h.t, err)
	return seq
}

func (h *harness) tick(id string) *settlement.Report {
	h.t.Helper()
	report, err := h.m.Tick(h.ctx, id)
	require.NoError(h.t, err)
	require.NotNil(h.t, report)
	return report
}

func (h *harness) state(id string) *world.State {
	h.t.Helper()
	s, err := h.m.session(id)
	require.NoError(h.t, err)
	return s.Snapshot()
}

func (h *harness) retired(id string) *Session {
	h.t.Helper()
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()
	s, ok := h.m.ended[id]
	require.True(h.t, ok, "session %s not retired", id)
	return s
}

func dir(d intent.Direction) func(*intent.Intent) {
	return func(in *intent.Intent) { in.Direction = d }
}

func target(id string) func(*intent.Intent) {
	return func(in *intent.Intent) { in.TargetID = id }
}

func item(name string) func(*intent.Intent) {
	return func(in *intent.Intent) { in.ItemRef = name }
}

func items(loadout map[string]int) func(*intent.Intent) {
	return func(in *intent.Intent) { in.Items = loadout }
}

func lvl(l int) func(*intent.Intent) {
	return func(in *intent.Intent) { in.Level = l }
}

// outcome returns the settlement of seq in a report.
func outcome(t *testing.T, r *settlement.Report, seq int64) settlement.Outcome {
	t.Helper()
	for _, e := range r.Settlements {
		if e.Seq == seq {
			return e.Outcome
		}
	}
	t.Fatalf("seq %d not settled in tick %d", seq, r.Tick)
	return settlement.Outcome{}
}

func hasEvent(out settlement.Outcome, typ string) bool {
	for _, e := range out.Events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// scenarioDungeon is a 5x5 open grid: player spawn at (0,0), enemy B at
// (0,1) with 10 hp.
func scenarioDungeon() *intent.SessionConfig {
	return testutil.SmallDungeon(5, 5, []world.Pos{testutil.At(0, 0)}, testutil.Enemy("B", 0, 1, 10))
}
