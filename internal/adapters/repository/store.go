// Package repository defines the score and history stores and their
// memory, SQLite and Redis backends.
package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/duelist/internal/domain/model"
)

// Change is the effect of a score mutation on one participant.
type Change struct {
	ID  model.ID
	Old int
	New int
	// First is set when id had no stored score before the update.
	First bool
}

// Delta returns New - Old.
func (c Change) Delta() int { return c.New - c.Old }

// UpdateFunc receives the current scores of the requested identities, in
// request order, and returns their new scores in the same order. Results
// are clamped by the store. Returning an error aborts the update.
type UpdateFunc func(current []int) ([]int, error)

// ScoreStore maps participant identities to bounded integer scores.
// Operations on one identity are serialised; operations on different
// identities do not wait for each other.
type ScoreStore interface {
	// Get returns the score of id, 0 if absent.
	Get(ctx context.Context, id model.ID) (int, error)
	// ApplyDelta adds delta to the score of id and clamps the result.
	ApplyDelta(ctx context.Context, id model.ID, delta int) (Change, error)
	// Update performs an atomic read-modify-write across ids.
	Update(ctx context.Context, ids []model.ID, fn UpdateFunc) ([]Change, error)
	// Scores returns every stored score.
	Scores(ctx context.Context) (map[model.ID]int, error)
	// Participants returns the number of identities with a stored score.
	Participants(ctx context.Context) (int, error)
}

// HistoryLog is the append-only audit trail of resolved duels.
type HistoryLog interface {
	// Append durably writes rec after all previously appended records.
	Append(ctx context.Context, rec model.HistoryRecord) error
	// ReadAll returns every record in append order.
	ReadAll(ctx context.Context) ([]model.HistoryRecord, error)
	// Count returns the number of appended records.
	Count(ctx context.Context) (int, error)
}

// Store bundles both stores of one backend.
type Store interface {
	ScoreStore
	HistoryLog
	Close() error
}

// clamp bounds a score to [0, maxScore].
func clamp(v, maxScore int) int {
	if v < 0 {
		return 0
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

// sortedUnique returns ids in ascending order and rejects duplicates.
func sortedUnique(ids []model.ID) ([]model.ID, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no identities", ErrInvalidUpdate)
	}
	out := make([]model.ID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	for i := 1; i < len(out); i++ {
		if out[i] == out[i-1] {
			return nil, fmt.Errorf("%w: duplicate identity %s", ErrInvalidUpdate, out[i])
		}
	}
	return out, nil
}

// apply runs fn over current and builds the clamped change set. stored
// reports which identities already had a score.
func apply(ids []model.ID, current []int, stored []bool, fn UpdateFunc, maxScore int) ([]Change, error) {
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if len(next) != len(ids) {
		return nil, fmt.Errorf("%w: got %d scores for %d identities", ErrInvalidUpdate, len(next), len(ids))
	}
	changes := make([]Change, len(ids))
	for i, id := range ids {
		changes[i] = Change{ID: id, Old: current[i], New: clamp(next[i], maxScore), First: !stored[i]}
	}
	return changes, nil
}
