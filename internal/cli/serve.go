package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/engine"
	"github.com/roach88/intents/internal/notify"
	"github.com/roach88/intents/internal/snapshot"
	"github.com/roach88/intents/internal/store"
	"github.com/roach88/intents/internal/world"
)

// ServeOptions holds flags for the serve command. Flags left unset fall
// back to the INTENTS_* environment.
type ServeOptions struct {
	*RootOptions
	Database     string
	RulesPath    string
	RedisAddr    string
	NATSURL      string
	EmbeddedNATS bool
	NATSPort     int
	Interval     time.Duration

	// IDGenerator allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator

	// ready is called with the broker URL (empty without NATS) once the
	// solver is about to start ticking.
	ready func(natsURL string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the solver",
		Long: `Start the intents solver.

Opens the SQLite settlement store, restores every session that had not
ended, and ticks all sessions on a fixed interval. With a NATS broker
(--nats or --embedded-nats) submissions are accepted on the submit subject
and every committed tick is published. With --redis committed state is
also cached in Redis for readers.

Every flag can also be set through the environment:
  INTENTS_DB_PATH, INTENTS_RULES, INTENTS_REDIS_ADDR, INTENTS_NATS_URL,
  INTENTS_EMBEDDED_NATS, INTENTS_TICK_INTERVAL, INTENTS_SUBMIT_SUBJECT,
  INTENTS_MAX_PENDING, INTENTS_LOG_LEVEL, INTENTS_LOG_FORMAT

Examples:
  intents serve --db ./intents.db --embedded-nats
  intents serve --db ./intents.db --nats nats://localhost:4222 --redis localhost:6379`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RulesPath, "rules", "", "CUE file overriding the default rules")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis", "", "Redis address or URL for the snapshot cache")
	cmd.Flags().StringVar(&opts.NATSURL, "nats", "", "NATS server URL")
	cmd.Flags().BoolVar(&opts.EmbeddedNATS, "embedded-nats", false, "run an in-process NATS server")
	cmd.Flags().IntVar(&opts.NATSPort, "nats-port", 4222, "port of the embedded NATS server (-1 for random)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "tick interval")

	return cmd
}

// serveConfig merges explicitly set flags over the environment.
func serveConfig(opts *ServeOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = opts.Database
	}
	if flags.Changed("rules") {
		cfg.RulesPath = opts.RulesPath
	}
	if flags.Changed("redis") {
		cfg.RedisAddr = opts.RedisAddr
	}
	if flags.Changed("nats") {
		cfg.NATSURL = opts.NATSURL
	}
	if flags.Changed("embedded-nats") {
		cfg.EmbeddedNATS = opts.EmbeddedNATS
	}
	if flags.Changed("interval") {
		cfg.TickInterval = opts.Interval
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := serveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger := cfg.Logger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	var states engine.StateStore = st
	if cfg.RedisAddr != "" {
		cache, err := snapshot.Dial(ctx, cfg.RedisAddr, snapshot.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		defer cache.Close()
		states = &mirroredStates{primary: st, cache: cache, logger: logger}
	}

	natsURL := cfg.NATSURL
	if cfg.EmbeddedNATS {
		ns, err := notify.NewEmbeddedServer(notify.WithPort(opts.NATSPort), notify.WithServerLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create nats server", err)
		}
		if err := ns.Start(); err != nil {
			return WrapExitError(ExitCommandError, "failed to start nats server", err)
		}
		defer ns.Shutdown()
		natsURL = ns.ClientURL()
	}

	var (
		conn *nats.Conn
		pub  engine.Publisher = notify.Nop{}
	)
	if natsURL != "" {
		conn, err = nats.Connect(natsURL, nats.Name("intents-solver"))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to nats", err)
		}
		defer conn.Close()
		pub = notify.NewPublisher(conn)
	}

	ids := opts.IDGenerator
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	m := engine.NewManager(rules,
		engine.WithIDGenerator(ids),
		engine.WithLogSink(st),
		engine.WithStateStore(states),
		engine.WithPublisher(pub),
		engine.WithLogger(logger),
		engine.WithMaxPending(cfg.MaxPending),
	)

	restored, err := restoreSessions(ctx, st, m, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to restore sessions", err)
	}

	if conn != nil {
		ingress := notify.NewIngress(conn, engine.NewGateway(m), cfg.SubmitSubject, logger)
		if err := ingress.Start(); err != nil {
			return WrapExitError(ExitCommandError, "failed to start ingress", err)
		}
		defer ingress.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Solver started. Restored %d session(s).\n", restored)
	if natsURL != "" {
		fmt.Fprintf(w, "Accepting submissions on %s at %s\n", cfg.SubmitSubject, natsURL)
	}
	fmt.Fprintln(w, "Press Ctrl-C to stop.")

	if opts.ready != nil {
		opts.ready(natsURL)
	}

	loop := engine.NewLoop(m, engine.WithInterval(cfg.TickInterval), engine.WithLoopLogger(logger))
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "solver error", err)
	}

	logger.Info("solver stopped gracefully")
	return nil
}

// restoreSessions replays every stored session that had not ended back
// into m.
func restoreSessions(ctx context.Context, st *store.Store, m *engine.Manager, logger *slog.Logger) (int, error) {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, sum := range sessions {
		if sum.Status == world.StatusEnded {
			continue
		}
		rec, err := st.Recover(ctx, sum.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return restored, err
		}
		if rec.SnapshotStale {
			logger.Warn("snapshot behind settlement log, state rebuilt from log",
				"session", sum.ID, "snapshot_tick", rec.SnapshotTick, "log_tick", rec.LastTick)
		}
		if err := m.Restore(ctx, sum.ID, rec.Entries); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// mirroredStates saves committed state to SQLite and then to the Redis
// cache. Cache failures are logged and never fail the tick.
type mirroredStates struct {
	primary *store.Store
	cache   *snapshot.RedisStore
	logger  *slog.Logger
}

func (s *mirroredStates) Load(ctx context.Context, sessionID string) (*world.State, error) {
	st, err := s.cache.Load(ctx, sessionID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, snapshot.ErrNotFound) {
		s.logger.Warn("snapshot cache unavailable", "session", sessionID, "error", err)
	}
	return s.primary.Load(ctx, sessionID)
}

func (s *mirroredStates) Save(ctx context.Context, st *world.State) error {
	if err := s.primary.Save(ctx, st); err != nil {
		return err
	}
	if err := s.cache.Save(ctx, st); err != nil {
		s.logger.Warn("snapshot cache save failed", "session", st.SessionID, "error", err)
	}
	return nil
}
