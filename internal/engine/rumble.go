package engine

import (
	"sort"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

func (s *solver) rumbleCreate(in intent.Intent, cfg *intent.SessionConfig) settlement.Outcome {
	st := s.st
	st.Kind = world.KindRumble
	st.Seed = cfg.Seed
	st.Status = world.StatusRunning
	st.Rumble = &world.Rumble{
		Host:          in.ActorID,
		WindowSeconds: s.rules.ClampWindow(cfg.WindowSeconds),
		Participants:  []string{},
	}
	return settlement.Apply(settlement.Event{
		Type:   settlement.EventSessionNew,
		Actor:  in.ActorID,
		Target: string(world.KindRumble),
		Amount: st.Rumble.WindowSeconds,
	})
}

func (s *solver) rumbleJoin(in intent.Intent) settlement.Outcome {
	r := s.st.Rumble
	if r == nil || r.Closed {
		return settlement.Reject("rumble closed")
	}
	if r.Joined(in.ActorID) {
		return settlement.Reject("already joined")
	}
	i := sort.SearchStrings(r.Participants, in.ActorID)
	r.Participants = append(r.Participants, "")
	copy(r.Participants[i+1:], r.Participants[i:])
	r.Participants[i] = in.ActorID
	return settlement.Apply(settlement.Event{Type: settlement.EventJoined, Actor: in.ActorID})
}

func (s *solver) rumbleLeave(in intent.Intent) settlement.Outcome {
	r := s.st.Rumble
	if r == nil || r.Closed {
		return settlement.Reject("rumble closed")
	}
	i := sort.SearchStrings(r.Participants, in.ActorID)
	if i == len(r.Participants) || r.Participants[i] != in.ActorID {
		return settlement.Reject("not a participant")
	}
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
	return settlement.Apply(settlement.Event{Type: settlement.EventLeft, Actor: in.ActorID})
}

func (s *solver) rumbleClose(in intent.Intent) settlement.Outcome {
	r := s.st.Rumble
	if r == nil || r.Closed {
		return settlement.Reject("rumble closed")
	}
	if in.ActorID != r.Host && in.ActorID != intent.SystemActor {
		return settlement.Reject("only the host can close")
	}
	r.Closed = true

	if len(r.Participants) == 0 {
		s.st.End(world.ResultCancelled)
		return settlement.Apply(settlement.Event{Type: settlement.EventEnded, Target: string(world.ResultCancelled)})
	}

	rules := s.rules.Rumble
	rng := newRNG(s.st.Seed, in.Seq)
	r.Winner = r.Participants[rng.Intn(len(r.Participants))]
	r.Reward = rollRange(rng, rules.RewardMin, rules.RewardMax)
	s.st.End(world.ResultSettled)

	out := settlement.Apply(
		settlement.Event{Type: settlement.EventRumbleWon, Actor: r.Winner, Amount: r.Reward},
		settlement.Event{Type: settlement.EventEnded, Target: string(world.ResultSettled)},
	)
	out.Rewards = []settlement.Reward{{PlayerID: r.Winner, Gold: r.Reward}}
	return out
}
