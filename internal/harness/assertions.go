package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/intents/internal/store"
	"github.com/roach88/intents/internal/world"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	// Board is the rendered grid, empty for non-grid sessions.
	Board string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Board != "" {
		fmt.Fprintf(&buf, "\nBoard:\n%s\n", e.Board)
	}
	return buf.String()
}

// AssertionContext provides database access for settled_count assertions.
type AssertionContext struct {
	Store     *store.Store
	Ctx       context.Context
	SessionID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEntity:
			err = assertEntity(result.Final, assertion)
		case AssertSession:
			err = assertSession(result.Final, assertion)
		case AssertEventCount:
			err = assertEventCount(result, assertion)
		case AssertSettledCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: settled_count requires database context", i)
			} else {
				err = assertSettledCount(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertEntity(st *world.State, a Assertion) error {
	if st == nil {
		return fmt.Errorf("entity %s: no final state", a.Entity)
	}
	e, ok := st.Entity(a.Entity)
	if !ok {
		return &AssertionError{
			Type:     AssertEntity,
			Expected: fmt.Sprintf("entity %s", a.Entity),
			Actual:   "not in final state",
			Board:    st.Render(),
		}
	}

	var diffs []string
	if a.HP != nil && e.HP != *a.HP {
		diffs = append(diffs, fmt.Sprintf("hp %d, want %d", e.HP, *a.HP))
	}
	if a.Pos != nil && e.Pos != *a.Pos {
		diffs = append(diffs, fmt.Sprintf("pos (%d,%d), want (%d,%d)", e.Pos.X, e.Pos.Y, a.Pos.X, a.Pos.Y))
	}
	if a.Alive != nil && e.Alive != *a.Alive {
		diffs = append(diffs, fmt.Sprintf("alive %t, want %t", e.Alive, *a.Alive))
	}
	if a.XP != nil && e.XP != *a.XP {
		diffs = append(diffs, fmt.Sprintf("xp %d, want %d", e.XP, *a.XP))
	}
	if a.Gold != nil && e.Gold != *a.Gold {
		diffs = append(diffs, fmt.Sprintf("gold %d, want %d", e.Gold, *a.Gold))
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertEntity,
		Expected: fmt.Sprintf("entity %s as asserted", a.Entity),
		Actual:   strings.Join(diffs, "; "),
		Board:    st.Render(),
	}
}

func assertSession(st *world.State, a Assertion) error {
	if st == nil {
		return fmt.Errorf("session: no final state")
	}

	var diffs []string
	if a.Status != "" && st.Status != a.Status {
		diffs = append(diffs, fmt.Sprintf("status %q, want %q", st.Status, a.Status))
	}
	if a.Result != "" && st.Result != a.Result {
		diffs = append(diffs, fmt.Sprintf("result %q, want %q", st.Result, a.Result))
	}
	if a.Duel != "" {
		switch {
		case st.Duel == nil:
			diffs = append(diffs, "no duel in session")
		case st.Duel.State != a.Duel:
			diffs = append(diffs, fmt.Sprintf("duel %s, want %s", st.Duel.State, a.Duel))
		}
	}
	if a.Winner != "" {
		if got := winner(st); got != a.Winner {
			diffs = append(diffs, fmt.Sprintf("winner %q, want %q", got, a.Winner))
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertSession,
		Expected: "session as asserted",
		Actual:   strings.Join(diffs, "; "),
	}
}

func winner(st *world.State) string {
	switch {
	case st.Duel != nil:
		return st.Duel.Winner
	case st.Rumble != nil:
		return st.Rumble.Winner
	}
	return ""
}

// assertEventCount counts events of one type across settlements and AI.
func assertEventCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Events() {
		if e.Type == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertSettledCount counts stored settlements by outcome status, so it
// also covers what reached the database.
func assertSettledCount(actx *AssertionContext, a Assertion) error {
	rows, err := actx.Store.Query(actx.Ctx, `
		SELECT COUNT(*) FROM settlements WHERE session_id = ? AND status = ?
	`, actx.SessionID, string(a.Outcome))
	if err != nil {
		return fmt.Errorf("settled_count: %w", err)
	}
	defer rows.Close()

	count := 0
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return fmt.Errorf("settled_count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("settled_count: %w", err)
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertSettledCount,
			Expected: fmt.Sprintf("%d %s settlements", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}
