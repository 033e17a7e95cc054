package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/intents/internal/canon"
)

// Kind identifies the game a session runs.
type Kind string

const (
	KindDuel    Kind = "duel"
	KindRumble  Kind = "rumble"
	KindDungeon Kind = "dungeon"
)

// Valid reports whether k is a known session kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDuel, KindRumble, KindDungeon:
		return true
	}
	return false
}

// Status is the lifecycle position of a session.
// The zero value means the create intent has not been settled yet.
type Status string

const (
	StatusPending Status = ""
	StatusLobby   Status = "lobby"
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

// Result describes why a session ended.
type Result string

const (
	ResultNone      Result = ""
	ResultVictory   Result = "victory"
	ResultDefeat    Result = "defeat"
	ResultSettled   Result = "settled"
	ResultCancelled Result = "cancelled"
	ResultAbandoned Result = "abandoned"
)

// EntityKind separates player-controlled entities from AI-controlled ones.
type EntityKind string

const (
	EntityPlayer EntityKind = "player"
	EntityEnemy  EntityKind = "enemy"
)

// Entity is a combatant on the grid.
type Entity struct {
	ID     string         `json:"id"`
	Kind   EntityKind     `json:"kind"`
	Pos    Pos            `json:"pos"`
	HP     int            `json:"hp"`
	MaxHP  int            `json:"max_hp"`
	Attack int            `json:"attack"`
	Alive  bool           `json:"alive"`
	Level  int            `json:"level,omitempty"`
	Items  map[string]int `json:"items,omitempty"`
	XP     int            `json:"xp,omitempty"`
	Gold   int            `json:"gold,omitempty"`
}

// Hostile reports whether e and other fight each other.
func (e *Entity) Hostile(other *Entity) bool {
	return e.Kind != other.Kind
}

// occupiesCell reports whether e belongs in the occupancy index.
func (e *Entity) occupiesCell() bool {
	return e.Alive || e.Kind == EntityPlayer
}

func (e *Entity) clone() *Entity {
	c := *e
	if e.Items != nil {
		c.Items = make(map[string]int, len(e.Items))
		for k, v := range e.Items {
			c.Items[k] = v
		}
	}
	return &c
}

// State is the mutable simulation state of one session.
type State struct {
	SessionID string `json:"session_id"`
	Kind      Kind   `json:"kind,omitempty"`
	Status    Status `json:"status,omitempty"`
	Result    Result `json:"result,omitempty"`
	Seed      int64  `json:"seed"`
	Tick      int64  `json:"tick"`
	LastSeq   int64  `json:"last_seq"`

	// Grid sessions only.
	Width     int                `json:"width,omitempty"`
	Height    int                `json:"height,omitempty"`
	Border    bool               `json:"border,omitempty"`
	Floor     int                `json:"floor,omitempty"`
	Floors    int                `json:"floors,omitempty"`
	Spawns    []Pos              `json:"spawns,omitempty"`
	Obstacles []Pos              `json:"obstacles,omitempty"`
	Entities  map[string]*Entity `json:"entities,omitempty"`

	Duel   *Duel   `json:"duel,omitempty"`
	Rumble *Rumble `json:"rumble,omitempty"`

	obstacles map[Pos]bool
	occ       map[Pos]string
}

// Errors returned by grid mutations.
var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrCellTaken     = errors.New("cell is occupied")
	ErrNotWalkable   = errors.New("cell is not walkable")
)

// Empty returns the state of a session whose create intent has not been
// settled. Replay always starts here.
func Empty(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		obstacles: map[Pos]bool{},
		occ:       map[Pos]string{},
	}
}

// InitGrid sets up grid dimensions and obstacles. Existing entities are kept.
func (s *State) InitGrid(width, height int, border bool, obstacles []Pos) {
	s.Width = width
	s.Height = height
	s.Border = border
	s.Obstacles = append([]Pos(nil), obstacles...)
	sort.Slice(s.Obstacles, func(i, j int) bool { return s.Obstacles[i].Less(s.Obstacles[j]) })
	if s.Entities == nil {
		s.Entities = map[string]*Entity{}
	}
	s.Reindex()
}

// Reindex rebuilds the unexported lookup tables from exported fields.
// Call it after decoding a State.
func (s *State) Reindex() {
	s.obstacles = make(map[Pos]bool, len(s.Obstacles))
	for _, p := range s.Obstacles {
		s.obstacles[p] = true
	}
	s.occ = make(map[Pos]string, len(s.Entities))
	for _, id := range s.sortedIDs("") {
		e := s.Entities[id]
		if e.occupiesCell() {
			s.occ[e.Pos] = id
		}
	}
}

// UnmarshalJSON decodes a State and restores its indexes.
func (s *State) UnmarshalJSON(data []byte) error {
	type plain State
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = State(p)
	s.Reindex()
	return nil
}

// Entity returns the entity with the given id.
func (s *State) Entity(id string) (*Entity, bool) {
	e, ok := s.Entities[id]
	return e, ok
}

// Place puts a new entity on the grid.
func (s *State) Place(e *Entity) error {
	if _, exists := s.Entities[e.ID]; exists {
		return fmt.Errorf("place %s: entity already exists", e.ID)
	}
	if !s.Walkable(e.Pos) {
		return fmt.Errorf("place %s at (%d,%d): %w", e.ID, e.Pos.X, e.Pos.Y, ErrNotWalkable)
	}
	if s.Entities == nil {
		s.Entities = map[string]*Entity{}
	}
	s.Entities[e.ID] = e
	if e.occupiesCell() {
		s.occ[e.Pos] = e.ID
	}
	return nil
}

// Move relocates an entity. The destination must be walkable.
func (s *State) Move(id string, to Pos) error {
	e, ok := s.Entities[id]
	if !ok {
		return fmt.Errorf("move %s: %w", id, ErrUnknownEntity)
	}
	if !s.Walkable(to) {
		return fmt.Errorf("move %s to (%d,%d): %w", id, to.X, to.Y, ErrNotWalkable)
	}
	if s.occ[e.Pos] == id {
		delete(s.occ, e.Pos)
	}
	e.Pos = to
	s.occ[to] = id
	return nil
}

// Damage subtracts amount from the entity's hp and downs it at zero.
// It returns true when this call downed the entity.
func (s *State) Damage(id string, amount int) (bool, error) {
	e, ok := s.Entities[id]
	if !ok {
		return false, fmt.Errorf("damage %s: %w", id, ErrUnknownEntity)
	}
	if !e.Alive {
		return false, nil
	}
	e.HP -= amount
	if e.HP <= 0 {
		e.HP = 0
		s.down(e)
		return true, nil
	}
	return false, nil
}

func (s *State) down(e *Entity) {
	e.Alive = false
	if !e.occupiesCell() && s.occ[e.Pos] == e.ID {
		delete(s.occ, e.Pos)
	}
}

// Heal restores hp up to MaxHP. A downed player is revived in place.
func (s *State) Heal(id string, amount int) error {
	e, ok := s.Entities[id]
	if !ok {
		return fmt.Errorf("heal %s: %w", id, ErrUnknownEntity)
	}
	if !e.Alive && e.Kind != EntityPlayer {
		return fmt.Errorf("heal %s: downed enemies cannot be revived", id)
	}
	e.HP += amount
	if e.HP > e.MaxHP {
		e.HP = e.MaxHP
	}
	if e.HP > 0 {
		e.Alive = true
	}
	return nil
}

// Remove deletes an entity and frees its cell.
func (s *State) Remove(id string) error {
	e, ok := s.Entities[id]
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownEntity)
	}
	if s.occ[e.Pos] == id {
		delete(s.occ, e.Pos)
	}
	delete(s.Entities, id)
	return nil
}

// Players returns player ids in ascending order.
func (s *State) Players() []string {
	return s.sortedIDs(EntityPlayer)
}

// Enemies returns enemy ids in ascending order.
func (s *State) Enemies() []string {
	return s.sortedIDs(EntityEnemy)
}

// LivingPlayers returns ids of players that can still act.
func (s *State) LivingPlayers() []string {
	var ids []string
	for _, id := range s.Players() {
		if s.Entities[id].Alive {
			ids = append(ids, id)
		}
	}
	return ids
}

// FloorCleared reports whether every enemy on the current floor is down.
func (s *State) FloorCleared() bool {
	for _, id := range s.Enemies() {
		if s.Entities[id].Alive {
			return false
		}
	}
	return true
}

// ClearEnemies drops every enemy, alive or not.
func (s *State) ClearEnemies() {
	for _, id := range s.Enemies() {
		_ = s.Remove(id)
	}
}

func (s *State) sortedIDs(kind EntityKind) []string {
	ids := make([]string, 0, len(s.Entities))
	for id, e := range s.Entities {
		if kind == "" || e.Kind == kind {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Ended reports whether the session reached a terminal status.
func (s *State) Ended() bool {
	return s.Status == StatusEnded
}

// End moves the session to its terminal status.
func (s *State) End(r Result) {
	s.Status = StatusEnded
	s.Result = r
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Spawns = append([]Pos(nil), s.Spawns...)
	c.Obstacles = append([]Pos(nil), s.Obstacles...)
	if s.Entities != nil {
		c.Entities = make(map[string]*Entity, len(s.Entities))
		for id, e := range s.Entities {
			c.Entities[id] = e.clone()
		}
	}
	if s.Duel != nil {
		d := *s.Duel
		c.Duel = &d
	}
	if s.Rumble != nil {
		r := *s.Rumble
		r.Participants = append([]string(nil), s.Rumble.Participants...)
		c.Rumble = &r
	}
	c.Reindex()
	return &c
}

// DigestDomain separates state digests from other hashed records.
const DigestDomain = "intents/state/v1"

// Digest returns the content hash used as the equality for World State.
func (s *State) Digest() (string, error) {
	d, err := canon.Digest(DigestDomain, s)
	if err != nil {
		return "", fmt.Errorf("state digest: %w", err)
	}
	return d, nil
}
