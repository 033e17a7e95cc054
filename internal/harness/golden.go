package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/intents/internal/canon"
)

// TraceJSONL renders the trace as canonical JSON, one tick per line.
// The output is byte-stable across runs and platforms.
func (r *Result) TraceJSONL() ([]byte, error) {
	var buf bytes.Buffer
	for _, tt := range r.Trace {
		line, err := canon.Marshal(tt)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", tt.Tick, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// The scenario must also pass; a golden match on a failing run is not a
// success.
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("run %s: %v", scenario.Name, err)
	}
	if !result.Pass {
		t.Fatalf("scenario %s failed:\n%v", scenario.Name, result.Errors)
	}
	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares the given result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	trace, err := result.TraceJSONL()
	if err != nil {
		t.Fatalf("render trace: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, trace)
}
