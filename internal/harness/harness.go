package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/engine"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/store"
	"github.com/roach88/intents/internal/testutil"
)

// Harness holds the wiring of one scenario run.
type Harness struct {
	store   *store.Store
	gateway *engine.Gateway
	loop    *engine.Loop
	clock   *testutil.FakeClock
	rules   config.Rules
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes engine logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and returns its result.
//
// Each run gets a fresh in-memory database, a fake clock starting at a
// fixed date, and the scenario name as session id.
//
// Execution flow:
//  1. Parse the rule overrides
//  2. Queue the create intent
//  3. For each tick step: advance the clock, submit, run one beat,
//     check expectations
//  4. Replay the stored log and compare digests
//  5. Evaluate assertions against the replayed state
//
// The returned error is for setup failures only; scenario failures are in
// Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	rules, err := config.ParseRules(scenario.Name+".cue", []byte(scenario.Rules))
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewFakeClock(time.Time{})
	m := engine.NewManager(rules,
		engine.WithIDGenerator(engine.NewFixedGenerator(scenario.Name)),
		engine.WithTimer(engine.NewTimer(clock.Now)),
		engine.WithLogSink(st),
		engine.WithStateStore(st),
		engine.WithLogger(o.logger),
	)
	h := &Harness{
		store:   st,
		gateway: engine.NewGateway(m),
		loop:    engine.NewLoop(m, engine.WithLoopLogger(o.logger)),
		clock:   clock,
		rules:   rules,
		logger:  o.logger,
	}

	ctx := context.Background()
	result := NewResult(scenario.Name)

	if err := h.create(ctx, scenario.Create); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	for i, step := range scenario.Ticks {
		h.executeTick(ctx, i, step, result)
	}

	h.verifyReplay(ctx, result)
	if result.Final != nil {
		actx := &AssertionContext{Store: st, Ctx: ctx, SessionID: scenario.Name}
		for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
			result.AddError(msg)
		}
	}
	return result, nil
}

// RunFile loads and runs a scenario file.
func RunFile(path string, opts ...Option) (*Scenario, *Result, error) {
	sc, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	res, err := Run(sc, opts...)
	return sc, res, err
}

func (h *Harness) create(ctx context.Context, step CreateStep) error {
	cfg := step.Config
	_, err := h.gateway.Create(ctx, engine.Submission{
		Principal: step.Actor,
		ActorID:   step.Actor,
		Level:     step.Level,
		Items:     step.Items,
		Config:    &cfg,
	})
	return err
}

func (h *Harness) executeTick(ctx context.Context, index int, step TickStep, result *Result) {
	h.clock.Advance(step.Advance)

	for _, sub := range step.Submit {
		h.submit(ctx, index, sub, result)
	}

	reports := h.loop.Beat(ctx)
	var report *settlement.Report
	for i := range reports {
		if reports[i].SessionID == result.SessionID {
			report = &reports[i]
		}
	}
	if report == nil {
		if len(step.Expect) > 0 {
			result.AddError(fmt.Sprintf("ticks[%d]: nothing settled, expected %d settlements", index, len(step.Expect)))
		}
		return
	}
	result.AddTick(*report)

	for _, exp := range step.Expect {
		checkExpectation(index, exp, *report, result)
	}
}

func (h *Harness) submit(ctx context.Context, index int, step SubmitStep, result *Result) {
	principal := step.As
	if principal == "" {
		principal = step.Actor
	}
	sub := engine.Submission{
		SessionID: result.SessionID,
		Principal: principal,
		ActorID:   step.Actor,
		Kind:      step.Kind,
		Direction: step.Direction,
		TargetID:  step.Target,
		ItemRef:   step.Item,
		Level:     step.Level,
		Items:     step.Items,
	}
	rcpt, err := h.gateway.Submit(ctx, sub)
	switch {
	case err != nil:
		result.Rejections = append(result.Rejections, Rejection{Step: index, Actor: step.Actor, Kind: step.Kind, Error: err.Error()})
		if step.Reject == "" {
			result.AddError(fmt.Sprintf("ticks[%d]: %s by %s rejected: %v", index, step.Kind, step.Actor, err))
		} else if !strings.Contains(err.Error(), step.Reject) {
			result.AddError(fmt.Sprintf("ticks[%d]: %s by %s rejected with %q, expected %q", index, step.Kind, step.Actor, err.Error(), step.Reject))
		}
	case step.Reject != "":
		result.AddError(fmt.Sprintf("ticks[%d]: %s by %s queued as seq %d, expected rejection %q", index, step.Kind, step.Actor, rcpt.Seq, step.Reject))
	default:
		h.logger.Debug("submitted", "step", index, "actor", step.Actor, "kind", step.Kind, "seq", rcpt.Seq)
	}
}

func checkExpectation(index int, exp Expectation, report settlement.Report, result *Result) {
	for _, e := range report.Settlements {
		if e.Seq != exp.Seq {
			continue
		}
		if e.Outcome.Status != exp.Status {
			result.AddError(fmt.Sprintf("ticks[%d]: seq %d settled %s (%s), expected %s", index, exp.Seq, e.Outcome.Status, e.Outcome.Reason, exp.Status))
		}
		if exp.Reason != "" && e.Outcome.Reason != exp.Reason {
			result.AddError(fmt.Sprintf("ticks[%d]: seq %d reason %q, expected %q", index, exp.Seq, e.Outcome.Reason, exp.Reason))
		}
		return
	}
	result.AddError(fmt.Sprintf("ticks[%d]: seq %d not settled in tick %d", index, exp.Seq, report.Tick))
}

// verifyReplay rebuilds the session from the stored log and checks it
// against the live digest and the stored snapshot.
func (h *Harness) verifyReplay(ctx context.Context, result *Result) {
	if result.Digest == "" {
		result.AddError("no tick was committed")
		return
	}
	log, err := h.store.ReadLog(ctx, result.SessionID)
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
		return
	}
	final, err := engine.VerifyReplay(log, h.rules, result.Digest)
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
		return
	}
	result.Final = final

	snap, err := h.store.Snapshot(ctx, result.SessionID)
	if err != nil {
		result.AddError(fmt.Sprintf("stored snapshot: %v", err))
		return
	}
	if snap.Digest != result.Digest {
		result.AddError(fmt.Sprintf("stored snapshot digest %s, live %s", snap.Digest, result.Digest))
	}
}
