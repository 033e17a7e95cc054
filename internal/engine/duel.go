package engine

import (
	"fmt"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

func (s *solver) duelCreate(in intent.Intent, cfg *intent.SessionConfig) settlement.Outcome {
	if cfg.Invitee == "" || cfg.Invitee == in.ActorID {
		return settlement.Reject("duel needs another player")
	}
	st := s.st
	st.Kind = world.KindDuel
	st.Seed = cfg.Seed
	st.Status = world.StatusRunning
	st.Duel = &world.Duel{
		Challenger:      in.ActorID,
		Invitee:         cfg.Invitee,
		ChallengerLevel: level(in.Level),
		State:           world.DuelProposed,
		ProposedSeq:     in.Seq,
	}
	return settlement.Apply(
		settlement.Event{Type: settlement.EventSessionNew, Actor: in.ActorID, Target: string(world.KindDuel)},
		settlement.Event{Type: settlement.EventDuel, Actor: in.ActorID, Target: string(world.DuelProposed)},
	)
}

// duelPending rejects transitions out of a terminal or accepted duel.
func (s *solver) duelPending() string {
	d := s.st.Duel
	if d == nil {
		return "no duel in session"
	}
	if d.State != world.DuelProposed {
		return fmt.Sprintf("duel already %s", d.State)
	}
	return ""
}

func (s *solver) duelAccept(in intent.Intent) settlement.Outcome {
	if reject := s.duelPending(); reject != "" {
		return settlement.Reject(reject)
	}
	d := s.st.Duel
	if in.ActorID != d.Invitee {
		return settlement.Reject("only the invitee can accept")
	}
	d.InviteeLevel = level(in.Level)
	d.State = world.DuelAccepted
	events := []settlement.Event{{Type: settlement.EventDuel, Actor: in.ActorID, Target: string(world.DuelAccepted)}}

	// Acceptance settles immediately.
	rules := s.rules.Duel
	rng := newRNG(s.st.Seed, in.Seq)
	d.ChallengerRoll = rollDie(rng, rules.Sides) + d.ChallengerLevel
	d.InviteeRoll = rollDie(rng, rules.Sides) + d.InviteeLevel
	events = append(events,
		settlement.Event{Type: settlement.EventRolled, Actor: d.Challenger, Amount: d.ChallengerRoll},
		settlement.Event{Type: settlement.EventRolled, Actor: d.Invitee, Amount: d.InviteeRoll},
	)

	var rewards []settlement.Reward
	switch {
	case d.ChallengerRoll > d.InviteeRoll:
		d.Winner = d.Challenger
	case d.InviteeRoll > d.ChallengerRoll:
		d.Winner = d.Invitee
	default:
		d.Draw = true
	}
	if d.Winner != "" {
		d.Reward = rollRange(rng, rules.RewardMin, rules.RewardMax)
		rewards = append(rewards, settlement.Reward{PlayerID: d.Winner, Gold: d.Reward})
	}

	d.State = world.DuelSettled
	s.st.End(world.ResultSettled)
	events = append(events,
		settlement.Event{Type: settlement.EventDuel, Actor: d.Winner, Target: string(world.DuelSettled)},
		settlement.Event{Type: settlement.EventEnded, Target: string(world.ResultSettled)},
	)

	out := settlement.Apply(events...)
	out.Rewards = rewards
	return out
}

func (s *solver) duelDecline(in intent.Intent) settlement.Outcome {
	if reject := s.duelPending(); reject != "" {
		return settlement.Reject(reject)
	}
	if in.ActorID != s.st.Duel.Invitee {
		return settlement.Reject("only the invitee can decline")
	}
	return s.duelCancelled(in.ActorID, world.DuelDeclined)
}

func (s *solver) duelCancel(in intent.Intent) settlement.Outcome {
	if reject := s.duelPending(); reject != "" {
		return settlement.Reject(reject)
	}
	if in.ActorID != s.st.Duel.Challenger {
		return settlement.Reject("only the challenger can cancel")
	}
	return s.duelCancelled(in.ActorID, world.DuelCancelled)
}

func (s *solver) duelTimeout(in intent.Intent) settlement.Outcome {
	if reject := s.duelPending(); reject != "" {
		return settlement.Reject(reject)
	}
	if in.ActorID != intent.SystemActor {
		return settlement.Reject("timeouts are issued by " + intent.SystemActor)
	}
	return s.duelCancelled(in.ActorID, world.DuelTimedOut)
}

func (s *solver) duelCancelled(actor string, to world.DuelState) settlement.Outcome {
	s.st.Duel.State = to
	s.st.End(world.ResultCancelled)
	return settlement.Apply(
		settlement.Event{Type: settlement.EventDuel, Actor: actor, Target: string(to)},
		settlement.Event{Type: settlement.EventEnded, Target: string(world.ResultCancelled)},
	)
}
