package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/engine"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/store"
	"github.com/roach88/intents/internal/testutil"
	"github.com/roach88/intents/internal/world"
)

// seeded plays sessions against a file database the way the solver would.
type seeded struct {
	t     *testing.T
	ctx   context.Context
	store *store.Store
	m     *engine.Manager
}

func newSeeded(t *testing.T, dbPath string, ids ...string) *seeded {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewFakeClock(time.Time{})
	m := engine.NewManager(config.DefaultRules(),
		engine.WithIDGenerator(engine.NewFixedGenerator(ids...)),
		engine.WithTimer(engine.NewTimer(clock.Now)),
		engine.WithLogSink(st),
		engine.WithStateStore(st),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return &seeded{t: t, ctx: context.Background(), store: st, m: m}
}

func (s *seeded) create(actor string, cfg *intent.SessionConfig) string {
	s.t.Helper()
	id, _, err := s.m.Create(s.ctx, intent.Intent{ActorID: actor, Level: 1, Config: cfg})
	require.NoError(s.t, err)
	return id
}

func (s *seeded) submit(in intent.Intent) {
	s.t.Helper()
	_, err := s.m.Submit(s.ctx, in)
	require.NoError(s.t, err)
}

func (s *seeded) tick() {
	s.t.Helper()
	_, err := s.m.TickAll(s.ctx)
	require.NoError(s.t, err)
}

// seedDungeon stores session s1: A joins, starts, steps right and attacks
// nothing. Five settlements over three ticks; A ends at (1,0) and B at (1,1).
func seedDungeon(t *testing.T, dbPath string) {
	t.Helper()
	s := newSeeded(t, dbPath, "s1")
	id := s.create("A", testutil.SmallDungeon(5, 5,
		[]world.Pos{testutil.At(0, 0)},
		testutil.Enemy("B", 0, 1, 10),
	))
	s.submit(intent.Intent{SessionID: id, ActorID: "A", Kind: intent.KindDungeonJoin})
	s.tick()
	s.submit(intent.Intent{SessionID: id, ActorID: "A", Kind: intent.KindStart})
	s.tick()
	s.submit(intent.Intent{SessionID: id, ActorID: "A", Kind: intent.KindMove, Direction: "right"})
	s.submit(intent.Intent{SessionID: id, ActorID: "A", Kind: intent.KindAttack})
	s.tick()
	require.NoError(t, s.store.Close())
}

// seedDuel stores a pending duel d1 from A to B.
func seedDuel(t *testing.T, dbPath string) {
	t.Helper()
	s := newSeeded(t, dbPath, "d1")
	s.create("A", &intent.SessionConfig{Kind: world.KindDuel, Seed: 7, Invitee: "B"})
	s.tick()
	require.NoError(t, s.store.Close())
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "intents.db")
}

// execute runs cmd with args and returns stdout and the error.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
