package world

import "strings"

// Render draws the grid as text, one row per line:
//
//	#  wall or obstacle
//	.  empty
//	P  living player
//	x  downed player
//	E  living enemy
//
// Non-grid sessions render as an empty string.
func (s *State) Render() string {
	if s.Width == 0 || s.Height == 0 {
		return ""
	}
	var b strings.Builder
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			p := Pos{X: x, Y: y}
			b.WriteByte(s.glyph(p))
		}
		if y < s.Height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (s *State) glyph(p Pos) byte {
	if id, ok := s.occ[p]; ok {
		e := s.Entities[id]
		switch {
		case e.Kind == EntityEnemy:
			return 'E'
		case e.Alive:
			return 'P'
		default:
			return 'x'
		}
	}
	if s.IsObstacle(p) {
		return '#'
	}
	return '.'
}
