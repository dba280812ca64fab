// Package errors provides common domain error types for the dicta application.
//
// This package defines sentinel errors for common domain conditions like "not found"
// or "invalid state" that can be used across all packages. Using typed errors enables
// consistent error handling patterns with errors.Is() checks.
//
// Usage:
//
//	import dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
//
//	// Return a domain error
//	return nil, dterrors.ErrNotFound
//
//	// Check for domain errors
//	if dterrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized indicates the request lacks valid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState indicates the operation is not valid for the current state.
	// Returned for illegal meeting status transitions and for retrying a meeting
	// that is not failed.
	ErrInvalidState = errors.New("invalid state")

	// ErrNoAudio indicates an audio archive contained no decodable frames.
	ErrNoAudio = errors.New("no decodable audio frames")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether any error in err's chain is ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthorized reports whether any error in err's chain is ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsNoAudio reports whether any error in err's chain is ErrNoAudio.
func IsNoAudio(err error) bool {
	return errors.Is(err, ErrNoAudio)
}
