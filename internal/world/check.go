package world

import (
	"fmt"
	"sort"
	"strings"
)

// InvariantError lists every violated invariant found by Check.
type InvariantError struct {
	SessionID  string
	Violations []string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("session %s: invariant violated: %s", e.SessionID, strings.Join(e.Violations, "; "))
}

// Check validates the structural invariants of the state:
//   - at most one occupant per coordinate
//   - the incremental occupancy index matches a full rebuild
//   - every placed entity is in bounds and off obstacles
//   - Alive agrees with HP
//
// It returns nil or an *InvariantError.
func (s *State) Check() error {
	var violations []string

	rebuilt := map[Pos]string{}
	for _, id := range s.sortedIDs("") {
		e := s.Entities[id]
		if e.ID != id {
			violations = append(violations, fmt.Sprintf("entity key %s holds id %s", id, e.ID))
		}
		if e.Alive != (e.HP > 0) {
			violations = append(violations, fmt.Sprintf("%s alive=%t with hp=%d", id, e.Alive, e.HP))
		}
		if !e.occupiesCell() {
			continue
		}
		if !s.InBounds(e.Pos) {
			violations = append(violations, fmt.Sprintf("%s out of bounds at (%d,%d)", id, e.Pos.X, e.Pos.Y))
		}
		if s.IsObstacle(e.Pos) {
			violations = append(violations, fmt.Sprintf("%s on obstacle at (%d,%d)", id, e.Pos.X, e.Pos.Y))
		}
		if other, taken := rebuilt[e.Pos]; taken {
			violations = append(violations, fmt.Sprintf("duplicate occupancy at (%d,%d): %s and %s", e.Pos.X, e.Pos.Y, other, id))
			continue
		}
		rebuilt[e.Pos] = id
	}

	if len(rebuilt) != len(s.occ) {
		violations = append(violations, fmt.Sprintf("occupancy index has %d cells, expected %d", len(s.occ), len(rebuilt)))
	} else {
		cells := make([]Pos, 0, len(rebuilt))
		for p := range rebuilt {
			cells = append(cells, p)
		}
		sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })
		for _, p := range cells {
			if s.occ[p] != rebuilt[p] {
				violations = append(violations, fmt.Sprintf("occupancy index at (%d,%d) is %q, expected %q", p.X, p.Y, s.occ[p], rebuilt[p]))
			}
		}
	}

	if s.Duel != nil && s.Duel.State.Terminal() && !s.Ended() {
		violations = append(violations, fmt.Sprintf("duel is %s but session is %s", s.Duel.State, s.Status))
	}

	if len(violations) == 0 {
		return nil
	}
	return &InvariantError{SessionID: s.SessionID, Violations: violations}
}
