// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/okian/duelist/internal/domain/duel"
	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/internal/domain/rank"
)

// Standing is a participant's current score and rank.
// IDs are rendered as strings since snowflakes exceed JSON number precision.
type Standing struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	Rank      string `json:"rank"`
	RankLevel int    `json:"rank_level"`
}

// NewStanding builds a Standing.
func NewStanding(id model.ID, score int, r rank.Rank) Standing {
	return Standing{ID: id.String(), Score: score, Rank: r.Name, RankLevel: r.Level}
}

// Party is a participant as rendered to clients.
type Party struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// NewParty builds a Party.
func NewParty(p model.Participant) Party {
	return Party{ID: p.ID.String(), Label: p.Label}
}

// Duel is a pending duel as rendered to clients.
type Duel struct {
	ID         string    `json:"id"`
	Challenger Party     `json:"challenger"`
	Opponent   Party     `json:"opponent"`
	CreatedAt  time.Time `json:"created_at"`
	VenueID    string    `json:"venue_id,omitempty"`
	VenueName  string    `json:"venue_name,omitempty"`
}

// NewDuel builds a Duel from a session snapshot.
func NewDuel(s duel.Snapshot) Duel {
	return Duel{
		ID:         s.ID,
		Challenger: NewParty(s.Challenger),
		Opponent:   NewParty(s.Opponent),
		CreatedAt:  s.CreatedAt,
		VenueID:    s.Venue.ID,
		VenueName:  s.Venue.Name,
	}
}

// Outcome is a resolution as rendered to clients.
type Outcome struct {
	SessionID  string     `json:"session_id"`
	Resolution string     `json:"resolution"`
	Winner     *Party     `json:"winner,omitempty"`
	PointsWon  int        `json:"points_won"`
	Expired    bool       `json:"expired,omitempty"`
	Standings  []Standing `json:"standings,omitempty"`
}

// NewOutcome builds an Outcome.
func NewOutcome(o duel.Outcome) Outcome {
	out := Outcome{
		SessionID:  o.SessionID,
		Resolution: o.Resolution.String(),
		PointsWon:  o.PointsWon,
		Expired:    o.Expired,
	}
	if o.Winner != nil {
		w := NewParty(*o.Winner)
		out.Winner = &w
	}
	for _, c := range o.Changes {
		out.Standings = append(out.Standings, NewStanding(c.Participant.ID, c.New, c.Transition.To))
	}
	return out
}

// Stats summarises service state.
type Stats struct {
	PendingDuels   int    `json:"pending_duels"`
	ResolvedCached int64  `json:"resolved_cached"`
	Participants   int    `json:"participants"`
	HistoryRecords int    `json:"history_records"`
	QueuedNotices  int    `json:"queued_notices"`
	StorageBackend string `json:"storage_backend"`
}
