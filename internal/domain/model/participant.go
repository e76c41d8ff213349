// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
)

// ID is a stable participant identity, e.g. a chat platform user snowflake.
type ID uint64

// String renders the ID in decimal.
func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseID parses a decimal participant identity.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse participant id %q: %w", s, err)
	}
	return ID(v), nil
}

// Participant is a duel party. Label is for display only; equality uses ID.
type Participant struct {
	ID    ID
	Label string
}

// Is reports whether p and o are the same identity.
func (p Participant) Is(o Participant) bool { return p.ID == o.ID }

// Name returns the label, or the ID when no label is known.
func (p Participant) Name() string {
	if p.Label != "" {
		return p.Label
	}
	return p.ID.String()
}

// Venue references the ephemeral channel created for a duel.
type Venue struct {
	ID   string
	Name string
}

// IsZero reports whether the venue is unset.
func (v Venue) IsZero() bool { return v.ID == "" }
