package engine

import (
	"fmt"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// maxGridSide bounds the grid a create intent may ask for.
const maxGridSide = 64

func (s *solver) dungeonCreate(in intent.Intent, cfg *intent.SessionConfig) settlement.Outcome {
	rules := s.rules.Dungeon
	width, height, floors := cfg.Width, cfg.Height, cfg.Floors
	if width == 0 {
		width = rules.Width
	}
	if height == 0 {
		height = rules.Height
	}
	if floors == 0 {
		floors = rules.Floors
	}
	if width > maxGridSide || height > maxGridSide {
		return settlement.Reject(fmt.Sprintf("grid %dx%d exceeds %d", width, height, maxGridSide))
	}

	// Build on a scratch state so a rejected create leaves nothing behind.
	st := world.Empty(s.st.SessionID)
	st.Tick, st.LastSeq = s.st.Tick, s.st.LastSeq
	st.Kind = world.KindDungeon
	st.Seed = cfg.Seed
	st.Status = world.StatusLobby
	st.Floor = 1
	st.Floors = floors
	st.Spawns = append([]world.Pos(nil), cfg.Spawns...)
	st.InitGrid(width, height, !cfg.NoBorder, cfg.Obstacles)

	if len(st.WalkableCells()) == 0 {
		return settlement.Reject("grid has no walkable cell")
	}

	events := []settlement.Event{{Type: settlement.EventSessionNew, Actor: in.ActorID, Target: string(world.KindDungeon)}}
	for _, spawn := range cfg.Enemies {
		hp := spawn.HP
		if hp <= 0 {
			hp = rules.EnemyHP
		}
		e := &world.Entity{
			ID:     spawn.ID,
			Kind:   world.EntityEnemy,
			Pos:    spawn.Pos,
			HP:     hp,
			MaxHP:  hp,
			Attack: rules.EnemyAttack,
			Alive:  true,
		}
		if err := st.Place(e); err != nil {
			return settlement.Reject(err.Error())
		}
		events = append(events, settlement.Event{Type: settlement.EventSpawned, Actor: e.ID, To: pos(e.Pos)})
	}
	*s.st = *st
	return settlement.Apply(events...)
}

func (s *solver) dungeonJoin(in intent.Intent) settlement.Outcome {
	st := s.st
	if st.Status != world.StatusLobby {
		return settlement.Reject("dungeon already started")
	}
	if _, ok := st.Entity(in.ActorID); ok {
		return settlement.Reject("already joined")
	}
	if len(st.Players()) >= s.rules.Dungeon.MaxPlayers {
		return settlement.Reject("dungeon is full")
	}

	at, ok := s.spawnCell()
	if !ok {
		return settlement.Block("no free cell")
	}
	var items map[string]int
	for name, n := range in.Items {
		if n <= 0 {
			continue
		}
		if items == nil {
			items = map[string]int{}
		}
		items[name] = n
	}
	p := &world.Entity{
		ID:     in.ActorID,
		Kind:   world.EntityPlayer,
		Pos:    at,
		HP:     s.rules.Dungeon.PlayerHP,
		MaxHP:  s.rules.Dungeon.PlayerHP,
		Attack: s.rules.Dungeon.PlayerAttack,
		Alive:  true,
		Level:  level(in.Level),
		Items:  items,
	}
	if err := st.Place(p); err != nil {
		return settlement.Block(err.Error())
	}
	return settlement.Apply(settlement.Event{Type: settlement.EventJoined, Actor: p.ID, To: pos(at)})
}

// spawnCell returns the first free configured spawn, else the first
// walkable cell.
func (s *solver) spawnCell() (world.Pos, bool) {
	for _, p := range s.st.Spawns {
		if s.st.Walkable(p) {
			return p, true
		}
	}
	return s.st.FirstWalkable()
}

func (s *solver) dungeonStart(in intent.Intent) settlement.Outcome {
	st := s.st
	if st.Status == world.StatusRunning {
		return settlement.Reject("dungeon already running")
	}
	if _, ok := st.Entity(in.ActorID); !ok {
		return settlement.Reject("not a member")
	}

	var events []settlement.Event
	if len(st.Enemies()) == 0 {
		events = s.spawnEnemies(in.Seq)
	}
	st.Status = world.StatusRunning
	return settlement.Apply(events...)
}

// spawnEnemies places players+1 enemies (plus the floor bonus) on free
// cells chosen by the seeded RNG.
func (s *solver) spawnEnemies(salt int64) []settlement.Event {
	st := s.st
	rules := s.rules.Dungeon
	count := len(st.Players()) + 1 + rules.FloorBonus*(st.Floor-1)

	rng := newRNG(st.Seed, salt)
	cells := st.WalkableCells()
	var events []settlement.Event
	for i := 1; i <= count && len(cells) > 0; i++ {
		k := rng.Intn(len(cells))
		at := cells[k]
		cells = append(cells[:k], cells[k+1:]...)

		e := &world.Entity{
			ID:     fmt.Sprintf("enemy-%d-%d", st.Floor, i),
			Kind:   world.EntityEnemy,
			Pos:    at,
			HP:     rules.EnemyHP,
			MaxHP:  rules.EnemyHP,
			Attack: rules.EnemyAttack,
			Alive:  true,
		}
		if err := st.Place(e); err != nil {
			continue
		}
		events = append(events, settlement.Event{Type: settlement.EventSpawned, Actor: e.ID, To: pos(at)})
	}
	return events
}

func (s *solver) dungeonLeave(in intent.Intent) settlement.Outcome {
	st := s.st
	p, ok := st.Entity(in.ActorID)
	if !ok || p.Kind != world.EntityPlayer {
		return settlement.Reject("not a member")
	}
	if err := st.Remove(in.ActorID); err != nil {
		return settlement.Reject(err.Error())
	}
	events := []settlement.Event{{Type: settlement.EventLeft, Actor: in.ActorID}}
	if len(st.Players()) == 0 {
		st.End(world.ResultAbandoned)
		events = append(events, settlement.Event{Type: settlement.EventEnded, Target: string(world.ResultAbandoned)})
	}
	return settlement.Apply(events...)
}

func (s *solver) dungeonAdvance(in intent.Intent) settlement.Outcome {
	st := s.st
	if _, reject := s.livingMember(in.ActorID); reject != "" {
		return settlement.Reject(reject)
	}
	if !st.FloorCleared() {
		return settlement.Reject("floor not cleared")
	}
	if st.Floor >= st.Floors {
		st.End(world.ResultVictory)
		return settlement.Apply(settlement.Event{Type: settlement.EventEnded, Target: string(world.ResultVictory)})
	}

	st.ClearEnemies()
	st.Floor++
	events := []settlement.Event{{Type: settlement.EventFloor, Actor: in.ActorID, Amount: st.Floor}}
	events = append(events, s.spawnEnemies(in.Seq)...)
	return settlement.Apply(events...)
}

// livingMember returns the actor if it is a living player of a running
// dungeon, or a rejection reason.
func (s *solver) livingMember(id string) (*world.Entity, string) {
	if s.st.Status != world.StatusRunning {
		return nil, "dungeon not running"
	}
	e, ok := s.st.Entity(id)
	if !ok || e.Kind != world.EntityPlayer {
		return nil, "not a member"
	}
	if !e.Alive {
		return nil, "actor is down"
	}
	return e, ""
}

func (s *solver) move(in intent.Intent) settlement.Outcome {
	actor, reject := s.livingMember(in.ActorID)
	if reject != "" {
		return settlement.Reject(reject)
	}
	dir, err := intent.ParseDirection(string(in.Direction))
	if err != nil {
		return settlement.Reject(err.Error())
	}

	from := actor.Pos
	to := from.Add(dir.Vector())
	switch {
	case !s.st.InBounds(to):
		return settlement.Block("out of bounds")
	case s.st.IsObstacle(to):
		return settlement.Block("obstacle")
	}
	if other, taken := s.st.Occupant(to); taken {
		return settlement.Block("cell occupied by " + other)
	}
	if err := s.st.Move(actor.ID, to); err != nil {
		return settlement.Block(err.Error())
	}
	return settlement.Apply(settlement.Event{Type: settlement.EventMoved, Actor: actor.ID, From: pos(from), To: pos(to)})
}

func (s *solver) attack(in intent.Intent) settlement.Outcome {
	actor, reject := s.livingMember(in.ActorID)
	if reject != "" {
		return settlement.Reject(reject)
	}

	var target *world.Entity
	if in.TargetID != "" {
		t, ok := s.st.Entity(in.TargetID)
		switch {
		case !ok:
			return settlement.Reject("unknown target " + in.TargetID)
		case !t.Alive:
			return settlement.Reject("target is down")
		case !actor.Hostile(t):
			return settlement.Reject("target is not hostile")
		case !actor.Pos.Adjacent(t.Pos):
			return settlement.Reject("target not adjacent")
		}
		target = t
	} else {
		for _, id := range s.st.Enemies() {
			e := s.st.Entities[id]
			if e.Alive && actor.Pos.Adjacent(e.Pos) {
				target = e
				break
			}
		}
		if target == nil {
			return settlement.Reject("no adjacent target")
		}
	}

	out := settlement.Apply(s.strike(actor, target)...)
	if !target.Alive {
		rules := s.rules.Dungeon
		actor.XP += rules.KillXP
		actor.Gold += rules.KillGold
		reward := settlement.Reward{PlayerID: actor.ID, XP: rules.KillXP, Gold: rules.KillGold}
		if levelUp(actor) {
			reward.Level = actor.Level
			out.Events = append(out.Events, settlement.Event{Type: settlement.EventLeveled, Actor: actor.ID, Amount: actor.Level})
		}
		out.Rewards = append(out.Rewards, reward)
	}
	return out
}

// levelRequirement is the XP needed to leave level l: l^3 * 25.
func levelRequirement(l int) int {
	if l <= 0 {
		return 0
	}
	return l * l * l * 25
}

// levelUp spends accumulated XP on levels and reports whether any was gained.
func levelUp(e *world.Entity) bool {
	gained := false
	for e.Level > 0 && e.XP >= levelRequirement(e.Level) {
		e.XP -= levelRequirement(e.Level)
		e.Level++
		gained = true
	}
	return gained
}

// strike applies one blow and returns its events.
func (s *solver) strike(attacker, target *world.Entity) []settlement.Event {
	downed, _ := s.st.Damage(target.ID, attacker.Attack)
	events := []settlement.Event{{Type: settlement.EventDamaged, Actor: attacker.ID, Target: target.ID, Amount: attacker.Attack}}
	if downed {
		events = append(events, settlement.Event{Type: settlement.EventDowned, Actor: attacker.ID, Target: target.ID})
	}
	return events
}

func (s *solver) useItem(in intent.Intent) settlement.Outcome {
	actor, reject := s.livingMember(in.ActorID)
	if reject != "" {
		return settlement.Reject(reject)
	}
	item, known := s.rules.Items[in.ItemRef]
	if !known {
		return settlement.Reject("unknown item " + in.ItemRef)
	}
	if actor.Items[in.ItemRef] <= 0 {
		return settlement.Reject("item not owned: " + in.ItemRef)
	}

	target := actor
	if in.TargetID != "" && in.TargetID != actor.ID {
		t, ok := s.st.Entity(in.TargetID)
		switch {
		case !ok:
			return settlement.Reject("unknown target " + in.TargetID)
		case t.Kind != world.EntityPlayer:
			return settlement.Reject("target is not an ally")
		case !actor.Pos.Adjacent(t.Pos):
			return settlement.Reject("target not adjacent")
		}
		target = t
	}

	wasDown := !target.Alive
	before := target.HP
	if err := s.st.Heal(target.ID, item.Heal); err != nil {
		return settlement.Reject(err.Error())
	}

	actor.Items[in.ItemRef]--
	if actor.Items[in.ItemRef] == 0 {
		delete(actor.Items, in.ItemRef)
	}
	if len(actor.Items) == 0 {
		actor.Items = nil
	}
	events := []settlement.Event{
		{Type: settlement.EventItemUsed, Actor: actor.ID, Target: in.ItemRef},
		{Type: settlement.EventHealed, Actor: actor.ID, Target: target.ID, Amount: target.HP - before},
	}
	if wasDown && target.Alive {
		events = append(events, settlement.Event{Type: settlement.EventRevived, Actor: actor.ID, Target: target.ID})
	}
	return settlement.Apply(events...)
}
