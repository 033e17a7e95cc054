package world

// Pos is a grid coordinate. X grows to the right, Y grows downward.
type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p translated by (dx, dy).
func (p Pos) Add(dx, dy int) Pos {
	return Pos{X: p.X + dx, Y: p.Y + dy}
}

// Distance returns the Manhattan distance between p and q.
func (p Pos) Distance(q Pos) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

// Adjacent reports whether q is one of the four orthogonal neighbours of p.
// Diagonals are not adjacent.
func (p Pos) Adjacent(q Pos) bool {
	return p.Distance(q) == 1
}

// Less orders positions row-major (Y first, then X).
func (p Pos) Less(q Pos) bool {
	if p.Y != q.Y {
		return p.Y < q.Y
	}
	return p.X < q.X
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// InBounds reports whether p lies inside the grid.
func (s *State) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.Width && p.Y < s.Height
}

// IsObstacle reports whether p is a wall or an explicit obstacle.
func (s *State) IsObstacle(p Pos) bool {
	if s.Border && (p.X == 0 || p.Y == 0 || p.X == s.Width-1 || p.Y == s.Height-1) {
		return true
	}
	return s.obstacles[p]
}

// Occupant returns the id of the entity occupying p.
func (s *State) Occupant(p Pos) (string, bool) {
	id, ok := s.occ[p]
	return id, ok
}

// Walkable reports whether an entity could step onto p right now.
func (s *State) Walkable(p Pos) bool {
	if !s.InBounds(p) || s.IsObstacle(p) {
		return false
	}
	_, taken := s.occ[p]
	return !taken
}

// FirstWalkable scans the grid row-major and returns the first walkable cell.
func (s *State) FirstWalkable() (Pos, bool) {
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			p := Pos{X: x, Y: y}
			if s.Walkable(p) {
				return p, true
			}
		}
	}
	return Pos{}, false
}

// WalkableCells returns every walkable cell in row-major order.
func (s *State) WalkableCells() []Pos {
	var cells []Pos
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			p := Pos{X: x, Y: y}
			if s.Walkable(p) {
				cells = append(cells, p)
			}
		}
	}
	return cells
}
