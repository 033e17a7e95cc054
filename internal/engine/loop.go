package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/intents/internal/settlement"
)

// DefaultTickInterval is the solver cadence when none is configured.
const DefaultTickInterval = 2 * time.Second

// Loop drives a Manager on a fixed cadence: each beat injects expired
// deadlines, then ticks every session.
type Loop struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithLoopLogger sets the loop logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop creates a loop over m.
func NewLoop(m *Manager, opts ...LoopOption) *Loop {
	l := &Loop{
		manager:  m,
		interval: DefaultTickInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until ctx is cancelled. Fatal session errors are logged and do
// not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("solver loop starting", "interval", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("solver loop stopped")
			return nil
		case <-ticker.C:
			l.Beat(ctx)
		}
	}
}

// Beat runs one expire-and-tick cycle and returns the committed reports.
func (l *Loop) Beat(ctx context.Context) []settlement.Report {
	l.manager.Expire(ctx)
	reports, err := l.manager.TickAll(ctx)
	if err != nil {
		l.logger.Error("tick failed", "error", err)
	}
	return reports
}
