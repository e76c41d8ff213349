package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for store errors.
var (
	// ErrStoreUnavailable wraps every backend I/O failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidUpdate    = errors.New("invalid score update")
	ErrClosed           = errors.New("store closed")

	errStoreClosed = fmt.Errorf("%w: %w", ErrStoreUnavailable, ErrClosed)
)

// unavailable marks a context or transport failure as a backend failure.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
