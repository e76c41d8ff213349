package duel

import (
	"errors"
	"fmt"
)

// Sentinel kinds for duel errors.
var (
	// ErrInvalidTransition is returned for an event the session cannot take
	// in its current state.
	ErrInvalidTransition = errors.New("invalid duel transition")
	// ErrAlreadyResolved is returned for events delivered to a terminal
	// session. It matches ErrInvalidTransition under errors.Is.
	ErrAlreadyResolved = fmt.Errorf("%w: duel already resolved", ErrInvalidTransition)
	// ErrResolvedBeforeReady is returned by Create when the duel was
	// resolved, typically by expiry, while its venue was being created.
	ErrResolvedBeforeReady = fmt.Errorf("%w: before its venue was ready", ErrAlreadyResolved)
	ErrUnknownSession      = errors.New("unknown duel session")
	ErrDuplicateDuel       = errors.New("a duel between these participants is already pending")
	ErrSelfChallenge       = errors.New("a participant cannot challenge themselves")
	ErrParticipantBusy     = errors.New("participant already has a pending duel")
	ErrNotParticipant      = errors.New("actor is not a participant of this duel")
	ErrInvalidEvent        = errors.New("invalid duel event")
)
