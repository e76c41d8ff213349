// Package duel implements the duel session lifecycle: creation, resolution
// by win, refusal or cancellation, and the registry of live sessions.
package duel

import (
	"time"

	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
)

// State is the lifecycle state of a session.
type State int

// Session states.
const (
	Pending State = iota
	Resolved
)

func (s State) String() string {
	if s == Resolved {
		return "resolved"
	}
	return "pending"
}

// Resolution is how a session left Pending.
type Resolution int

// Resolutions.
const (
	Unresolved Resolution = iota
	WinDeclared
	Refused
	Cancelled
)

func (r Resolution) String() string {
	switch r {
	case WinDeclared:
		return "win"
	case Refused:
		return "refused"
	case Cancelled:
		return "cancelled"
	default:
		return "unresolved"
	}
}

// Side selects one of the two participants.
type Side int

// Sides.
const (
	ChallengerSide Side = iota + 1
	OpponentSide
)

func (s Side) String() string {
	switch s {
	case ChallengerSide:
		return "challenger"
	case OpponentSide:
		return "opponent"
	default:
		return "none"
	}
}

// ParseSide parses "challenger" or "opponent".
func ParseSide(s string) (Side, bool) {
	switch s {
	case "challenger":
		return ChallengerSide, true
	case "opponent":
		return OpponentSide, true
	default:
		return 0, false
	}
}

// EventKind identifies an external action on a session.
type EventKind int

// Event kinds.
const (
	EventWin EventKind = iota + 1
	EventRefuse
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventWin:
		return "win"
	case EventRefuse:
		return "refuse"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is an action delivered to a session.
type Event struct {
	Kind EventKind
	Side Side
	By   model.Participant

	expired bool
}

// DeclareWin declares the given side the winner.
func DeclareWin(side Side) Event { return Event{Kind: EventWin, Side: side} }

// Refuse refuses the duel on behalf of by.
func Refuse(by model.Participant) Event { return Event{Kind: EventRefuse, By: by} }

// Cancel cancels the duel without any score change.
func Cancel(by model.Participant) Event { return Event{Kind: EventCancel, By: by} }

// expire cancels a session that stayed pending too long.
func expire() Event { return Event{Kind: EventCancel, expired: true} }

// ScoreChange is the effect of an outcome on one participant.
type ScoreChange struct {
	Participant model.Participant
	Old         int
	New         int
	// First is set when the participant had never been scored before.
	First      bool
	Transition rank.Transition
}

// Outcome describes a completed resolution.
type Outcome struct {
	SessionID  string
	Resolution Resolution
	Challenger model.Participant
	Opponent   model.Participant
	// Winner is nil for cancellations and third-party refusals.
	Winner *model.Participant
	// Actor is who refused or cancelled. Zero for expiry.
	Actor     model.Participant
	Expired   bool
	PointsWon int
	Changes   []ScoreChange
	Venue     model.Venue
	At        time.Time
}

// Loser returns the losing participant of a declared win.
func (o Outcome) Loser() (model.Participant, bool) {
	if o.Resolution != WinDeclared || o.Winner == nil {
		return model.Participant{}, false
	}
	if o.Winner.Is(o.Challenger) {
		return o.Opponent, true
	}
	return o.Challenger, true
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID         string
	Challenger model.Participant
	Opponent   model.Participant
	State      State
	Resolution Resolution
	CreatedAt  time.Time
	Venue      model.Venue
}
