package model

import "time"

// HistoryRecord is one immutable entry of the duel audit log.
// A refusal is stored with Accepted=false; Winner is nil when nobody won.
type HistoryRecord struct {
	SessionID      string    `json:"session_id"`
	Challenger     ID        `json:"challenger"`
	ChallengerName string    `json:"challenger_name"`
	Opponent       ID        `json:"opponent"`
	OpponentName   string    `json:"opponent_name"`
	Accepted       bool      `json:"accepted"`
	Winner         *ID       `json:"winner,omitempty"`
	PointsWon      int       `json:"points_won"`
	Timestamp      time.Time `json:"timestamp"`
}
