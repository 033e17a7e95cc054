package harness

import (
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// TraceEntry is one settled intent as it appears in a trace.
type TraceEntry struct {
	Seq     int64               `json:"seq"`
	Actor   string              `json:"actor"`
	Kind    intent.Kind         `json:"kind"`
	Status  settlement.Status   `json:"status"`
	Reason  string              `json:"reason,omitempty"`
	Events  []settlement.Event  `json:"events,omitempty"`
	Rewards []settlement.Reward `json:"rewards,omitempty"`
}

// TraceTick is one committed (or halted) tick. Digests are left out so
// golden files stay readable.
type TraceTick struct {
	Tick        int64              `json:"tick"`
	Settlements []TraceEntry       `json:"settlements"`
	AI          []settlement.Event `json:"ai,omitempty"`
	Status      world.Status       `json:"status"`
	Result      world.Result       `json:"result,omitempty"`
	Halted      bool               `json:"halted,omitempty"`
}

// Rejection is a submission refused at queue time.
type Rejection struct {
	Step  int         `json:"step"`
	Actor string      `json:"actor"`
	Kind  intent.Kind `json:"kind"`
	Error string      `json:"error"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held and replay
	// reproduced the live digest.
	Pass bool `json:"pass"`

	SessionID  string      `json:"session_id"`
	Trace      []TraceTick `json:"trace"`
	Rejections []Rejection `json:"rejections,omitempty"`
	Errors     []string    `json:"errors,omitempty"`

	// Digest is the live digest after the last committed tick.
	Digest string `json:"digest"`

	// Final is the state rebuilt by replay.
	Final *world.State `json:"-"`
}

// NewResult creates a new passing result.
func NewResult(sessionID string) *Result {
	return &Result{
		Pass:      true,
		SessionID: sessionID,
		Trace:     []TraceTick{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTick appends a report to the trace.
func (r *Result) AddTick(report settlement.Report) {
	tt := TraceTick{
		Tick:        report.Tick,
		Settlements: make([]TraceEntry, 0, len(report.Settlements)),
		AI:          report.AI,
		Status:      report.Status,
		Result:      report.Result,
		Halted:      report.Halted,
	}
	for _, e := range report.Settlements {
		tt.Settlements = append(tt.Settlements, TraceEntry{
			Seq:     e.Seq,
			Actor:   e.Intent.ActorID,
			Kind:    e.Intent.Kind,
			Status:  e.Outcome.Status,
			Reason:  e.Outcome.Reason,
			Events:  e.Outcome.Events,
			Rewards: e.Outcome.Rewards,
		})
	}
	r.Trace = append(r.Trace, tt)
	if !report.Halted {
		r.Digest = report.Digest
	}
}

// Settled returns the trace entry of seq.
func (r *Result) Settled(seq int64) (TraceEntry, bool) {
	for _, tt := range r.Trace {
		for _, e := range tt.Settlements {
			if e.Seq == seq {
				return e, true
			}
		}
	}
	return TraceEntry{}, false
}

// Events returns every event of the run in trace order: each tick's
// settlement events by seq, then its AI events.
func (r *Result) Events() []settlement.Event {
	var events []settlement.Event
	for _, tt := range r.Trace {
		for _, e := range tt.Settlements {
			events = append(events, e.Events...)
		}
		events = append(events, tt.AI...)
	}
	return events
}
