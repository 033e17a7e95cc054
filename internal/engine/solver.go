package engine

import (
	"fmt"
	"sort"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// Resolution is the result of folding one batch into a state.
type Resolution struct {
	Entries []settlement.Entry
	AI      []settlement.Event
}

// solver applies one batch to a state. It is a pure function of the state,
// the batch and the rules; live ticks and replay both go through it.
type solver struct {
	rules *config.Rules
	st    *world.State
	tick  int64
}

// Resolve settles a batch against st in place and returns one entry per
// intent, in ascending seq order.
//
// Resolution order: state-changing intents, then movement, then actions,
// each phase in ascending seq. Enemies act after every player intent, and
// only when the batch was non-empty. Victory and defeat are evaluated last.
func Resolve(st *world.State, batch []intent.Intent, tick int64, rules *config.Rules) Resolution {
	s := &solver{rules: rules, st: st, tick: tick}
	st.Tick = tick

	ordered := append([]intent.Intent(nil), batch...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	var res Resolution
	for _, phase := range intent.Phases {
		for i := range ordered {
			in := &ordered[i]
			if in.Phase() != phase {
				continue
			}
			out := s.apply(*in)
			// Seqs are unique within a batch, so a second mark cannot happen.
			_ = in.MarkProcessed()
			res.Entries = append(res.Entries, settlement.Entry{
				SessionID: st.SessionID,
				Seq:       in.Seq,
				Tick:      tick,
				Intent:    *in,
				Outcome:   out,
			})
			if in.Seq > st.LastSeq {
				st.LastSeq = in.Seq
			}
		}
	}
	sort.Slice(res.Entries, func(i, j int) bool { return res.Entries[i].Seq < res.Entries[j].Seq })

	if len(ordered) > 0 && st.Kind == world.KindDungeon && st.Status == world.StatusRunning {
		res.AI = s.enemiesAct()
	}
	res.AI = append(res.AI, s.concludeDungeon()...)
	return res
}

func (s *solver) apply(in intent.Intent) settlement.Outcome {
	if in.Kind == intent.KindCreate {
		return s.create(in)
	}
	if s.st.Kind == "" {
		return settlement.Reject("session not created")
	}
	if s.st.Ended() {
		return settlement.Reject(fmt.Sprintf("session ended (%s)", s.st.Result))
	}
	if !in.Kind.AllowedIn(s.st.Kind) {
		return settlement.Reject(fmt.Sprintf("%s not valid in a %s session", in.Kind, s.st.Kind))
	}

	switch in.Kind {
	case intent.KindDuelAccept:
		return s.duelAccept(in)
	case intent.KindDuelDecline:
		return s.duelDecline(in)
	case intent.KindDuelCancel:
		return s.duelCancel(in)
	case intent.KindDuelTimeout:
		return s.duelTimeout(in)
	case intent.KindRumbleJoin:
		return s.rumbleJoin(in)
	case intent.KindRumbleClose:
		return s.rumbleClose(in)
	case intent.KindLeave:
		if s.st.Kind == world.KindRumble {
			return s.rumbleLeave(in)
		}
		return s.dungeonLeave(in)
	case intent.KindDungeonJoin:
		return s.dungeonJoin(in)
	case intent.KindStart:
		return s.dungeonStart(in)
	case intent.KindAdvance:
		return s.dungeonAdvance(in)
	case intent.KindMove:
		return s.move(in)
	case intent.KindAttack:
		return s.attack(in)
	case intent.KindUseItem:
		return s.useItem(in)
	}
	return settlement.Reject(fmt.Sprintf("unknown kind %s", in.Kind))
}

func (s *solver) create(in intent.Intent) settlement.Outcome {
	if s.st.Kind != "" {
		return settlement.Reject("session already created")
	}
	if in.Config == nil {
		return settlement.Reject("missing session config")
	}
	cfg := in.Config

	switch cfg.Kind {
	case world.KindDuel:
		return s.duelCreate(in, cfg)
	case world.KindRumble:
		return s.rumbleCreate(in, cfg)
	case world.KindDungeon:
		return s.dungeonCreate(in, cfg)
	}
	return settlement.Reject(fmt.Sprintf("unknown session kind %q", cfg.Kind))
}

// concludeDungeon ends a running dungeon when every player is down or the
// last floor is clear.
func (s *solver) concludeDungeon() []settlement.Event {
	st := s.st
	if st.Kind != world.KindDungeon || st.Status != world.StatusRunning {
		return nil
	}
	if len(st.Players()) > 0 && len(st.LivingPlayers()) == 0 {
		st.End(world.ResultDefeat)
		return []settlement.Event{{Type: settlement.EventEnded, Target: string(world.ResultDefeat)}}
	}
	if st.FloorCleared() && st.Floor >= st.Floors {
		st.End(world.ResultVictory)
		return []settlement.Event{{Type: settlement.EventEnded, Target: string(world.ResultVictory)}}
	}
	return nil
}

func pos(p world.Pos) *world.Pos {
	return &p
}

func level(l int) int {
	if l < 1 {
		return 1
	}
	return l
}
