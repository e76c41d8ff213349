// Package rank maps scores to ordered named tiers.
package rank

import (
	"errors"
	"fmt"
)

// ErrInvalidTable is returned when a table cannot partition the score range.
var ErrInvalidTable = errors.New("invalid rank table")

// Rank is one tier. Lower Level means lower tier; Level 0 is the entry tier.
type Rank struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
}

// Less reports whether r is strictly below o.
func (r Rank) Less(o Rank) bool { return r.Level < o.Level }

func (r Rank) String() string { return r.Name }

// Direction classifies a rank transition.
type Direction int

// Transition directions.
const (
	Unchanged Direction = iota
	Promotion
	Demotion
	// Initial means the participant stayed in the entry tier. The tier role
	// is (re)assigned but this is not a change.
	Initial
)

func (d Direction) String() string {
	switch d {
	case Promotion:
		return "promotion"
	case Demotion:
		return "demotion"
	case Initial:
		return "initial"
	default:
		return "unchanged"
	}
}

// Table partitions [0, MaxScore] into contiguous bands of BandWidth points.
// Band(s) = max(0, s-1) / BandWidth; scores beyond the last named tier
// collapse into it.
type Table struct {
	maxScore  int
	bandWidth int
	names     []string
}

// NewTable builds a table for the given bounds and tier names, lowest first.
func NewTable(maxScore, bandWidth int, names []string) (*Table, error) {
	if maxScore <= 0 {
		return nil, fmt.Errorf("%w: max score must be positive", ErrInvalidTable)
	}
	if bandWidth <= 0 {
		return nil, fmt.Errorf("%w: band width must be positive", ErrInvalidTable)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one rank name required", ErrInvalidTable)
	}
	n := make([]string, len(names))
	copy(n, names)
	return &Table{maxScore: maxScore, bandWidth: bandWidth, names: n}, nil
}

// MaxScore returns the upper score bound.
func (t *Table) MaxScore() int { return t.maxScore }

// BandWidth returns the number of points per band.
func (t *Table) BandWidth() int { return t.bandWidth }

// Band returns the 0-based band index of a score.
func (t *Table) Band(score int) int {
	if score <= 1 {
		return 0
	}
	return (score - 1) / t.bandWidth
}

// Clamp bounds a score to [0, MaxScore].
func (t *Table) Clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > t.maxScore:
		return t.maxScore
	default:
		return score
	}
}

// Of returns the rank for a score. It is total and monotonic non-decreasing.
func (t *Table) Of(score int) Rank {
	lvl := t.Band(t.Clamp(score))
	if lvl >= len(t.names) {
		lvl = len(t.names) - 1
	}
	return Rank{Level: lvl, Name: t.names[lvl]}
}

// Entry returns the entry tier.
func (t *Table) Entry() Rank { return Rank{Level: 0, Name: t.names[0]} }

// ByName looks up a tier by its name.
func (t *Table) ByName(name string) (Rank, bool) {
	for i, n := range t.names {
		if n == name {
			return Rank{Level: i, Name: n}, true
		}
	}
	return Rank{}, false
}

// Ranks returns all tiers, lowest first.
func (t *Table) Ranks() []Rank {
	out := make([]Rank, len(t.names))
	for i, n := range t.names {
		out[i] = Rank{Level: i, Name: n}
	}
	return out
}

// Transition describes how a score change moved a participant between tiers.
type Transition struct {
	From      Rank
	To        Rank
	Direction Direction
}

// Changed reports whether the tier differs.
func (tr Transition) Changed() bool {
	return tr.Direction == Promotion || tr.Direction == Demotion
}

// Classify compares ranks before and after a score change. Staying in the
// entry tier is Initial: it covers a participant leaving the implicit zero
// state, who must receive the entry tier without a change announcement.
func (t *Table) Classify(oldScore, newScore int) Transition {
	from, to := t.Of(oldScore), t.Of(newScore)
	tr := Transition{From: from, To: to}
	switch {
	case from.Less(to):
		tr.Direction = Promotion
	case to.Less(from):
		tr.Direction = Demotion
	case to.Level == 0:
		tr.Direction = Initial
	default:
		tr.Direction = Unchanged
	}
	return tr
}
