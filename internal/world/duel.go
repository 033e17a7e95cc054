package world

// DuelState is a position in the duel state machine:
//
//	proposed -> accepted -> settled
//	proposed -> declined | cancelled | timed_out
type DuelState string

const (
	DuelProposed  DuelState = "proposed"
	DuelAccepted  DuelState = "accepted"
	DuelDeclined  DuelState = "declined"
	DuelCancelled DuelState = "cancelled"
	DuelTimedOut  DuelState = "timed_out"
	DuelSettled   DuelState = "settled"
)

// Terminal reports whether no further transition is possible.
func (d DuelState) Terminal() bool {
	switch d {
	case DuelDeclined, DuelCancelled, DuelTimedOut, DuelSettled:
		return true
	}
	return false
}

// Duel is a two-player challenge.
type Duel struct {
	Challenger      string    `json:"challenger"`
	Invitee         string    `json:"invitee"`
	ChallengerLevel int       `json:"challenger_level"`
	InviteeLevel    int       `json:"invitee_level"`
	State           DuelState `json:"state"`
	ProposedSeq     int64     `json:"proposed_seq"`

	// Filled on settlement.
	ChallengerRoll int    `json:"challenger_roll,omitempty"`
	InviteeRoll    int    `json:"invitee_roll,omitempty"`
	Winner         string `json:"winner,omitempty"`
	Draw           bool   `json:"draw,omitempty"`
	Reward         int    `json:"reward,omitempty"`
}

// Rumble is a free-for-all with a join window and a single winner.
type Rumble struct {
	Host          string   `json:"host"`
	WindowSeconds int      `json:"window_seconds"`
	Participants  []string `json:"participants"`
	Closed        bool     `json:"closed"`
	Winner        string   `json:"winner,omitempty"`
	Reward        int      `json:"reward,omitempty"`
}

// Joined reports whether id is a participant.
func (r *Rumble) Joined(id string) bool {
	for _, p := range r.Participants {
		if p == id {
			return true
		}
	}
	return false
}
