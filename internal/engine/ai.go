package engine

import (
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// enemiesAct runs one AI step. Enemies act in ascending id; each chases the
// nearest living player (Manhattan distance, ties by player id), attacks
// when adjacent, otherwise steps along the dominant axis, then the other
// axis, else stays.
func (s *solver) enemiesAct() []settlement.Event {
	var events []settlement.Event
	for _, id := range s.st.Enemies() {
		e := s.st.Entities[id]
		if !e.Alive {
			continue
		}
		target := s.nearestPlayer(e.Pos)
		if target == nil {
			break
		}
		if e.Pos.Adjacent(target.Pos) {
			events = append(events, s.strike(e, target)...)
			continue
		}
		if to, ok := s.chaseStep(e.Pos, target.Pos); ok {
			from := e.Pos
			if err := s.st.Move(e.ID, to); err == nil {
				events = append(events, settlement.Event{Type: settlement.EventMoved, Actor: e.ID, From: pos(from), To: pos(to)})
			}
		}
	}
	return events
}

func (s *solver) nearestPlayer(from world.Pos) *world.Entity {
	var best *world.Entity
	bestDist := 0
	for _, id := range s.st.LivingPlayers() {
		p := s.st.Entities[id]
		d := from.Distance(p.Pos)
		if best == nil || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

// chaseStep picks the next cell toward target. Ties between axes go to x.
func (s *solver) chaseStep(from, target world.Pos) (world.Pos, bool) {
	dx, dy := target.X-from.X, target.Y-from.Y
	stepX := from.Add(sign(dx), 0)
	stepY := from.Add(0, sign(dy))

	candidates := []world.Pos{stepX, stepY}
	if abs(dy) > abs(dx) {
		candidates = []world.Pos{stepY, stepX}
	}
	for _, c := range candidates {
		if c != from && s.st.Walkable(c) {
			return c, true
		}
	}
	return from, false
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
