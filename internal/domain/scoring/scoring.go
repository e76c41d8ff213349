// Package scoring converts duel outcomes into score deltas.
package scoring

import (
	"github.com/okian/duelist/internal/domain/rank"
)

// Default scoring configuration constants.
const (
	defaultRefusalPenalty = 2
	defaultLossPenalty    = 1
)

// Option applies a configuration option to the BandScorer.
type Option func(*BandScorer)

// WithRefusalPenalty sets the flat deduction applied to a refuser.
func WithRefusalPenalty(p int) Option {
	return func(s *BandScorer) {
		if p >= 0 {
			s.refusalPenalty = p
		}
	}
}

// WithLossPenalty sets the deduction applied to the loser of a duel.
func WithLossPenalty(p int) Option {
	return func(s *BandScorer) {
		if p >= 0 {
			s.lossPenalty = p
		}
	}
}

// WinResult is the effect of a declared win on both parties.
type WinResult struct {
	PointsWon   int
	WinnerScore int
	LoserScore  int
}

// Scorer computes new scores from current ones. Implementations are pure.
type Scorer interface {
	// Win returns updated scores given the winner's and loser's current scores.
	Win(winner, loser int) WinResult
	// Refuse returns the refuser's score after the refusal penalty.
	Refuse(score int) int
}

// BandScorer awards one point per win plus one bonus point per band the
// loser sits above the winner. All results are clamped to the table range.
type BandScorer struct {
	table          *rank.Table
	refusalPenalty int
	lossPenalty    int
}

var _ Scorer = (*BandScorer)(nil)

// NewBandScorer creates a scorer over the given rank table.
func NewBandScorer(table *rank.Table, opts ...Option) *BandScorer {
	s := &BandScorer{
		table:          table,
		refusalPenalty: defaultRefusalPenalty,
		lossPenalty:    defaultLossPenalty,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PointsWon returns 1 + max(0, band(loser) - band(winner)).
func (s *BandScorer) PointsWon(winner, loser int) int {
	gap := s.table.Band(s.table.Clamp(loser)) - s.table.Band(s.table.Clamp(winner))
	if gap < 0 {
		gap = 0
	}
	return 1 + gap
}

// Win implements Scorer.
func (s *BandScorer) Win(winner, loser int) WinResult {
	pts := s.PointsWon(winner, loser)
	return WinResult{
		PointsWon:   pts,
		WinnerScore: s.table.Clamp(winner + pts),
		LoserScore:  s.table.Clamp(loser - s.lossPenalty),
	}
}

// Refuse implements Scorer.
func (s *BandScorer) Refuse(score int) int {
	return s.table.Clamp(score - s.refusalPenalty)
}

// RefusalPenalty returns the configured refusal deduction.
func (s *BandScorer) RefusalPenalty() int { return s.refusalPenalty }
