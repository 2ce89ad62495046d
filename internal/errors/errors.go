package errors

import "errors"

// Common error types for the login broker
var (
	// Request errors
	ErrInvalidRequest     = errors.New("invalid request")
	ErrMissingCredentials = errors.New("missing credentials")

	// Transaction errors
	ErrStateNotFound = errors.New("state not found")
	ErrStateMismatch = errors.New("state mismatch")
	ErrStateExpired  = errors.New("state expired")

	// Upstream provider errors
	ErrTokenExchange = errors.New("token exchange failed")
	ErrProfileFetch  = errors.New("profile fetch failed")

	// Authorization errors
	ErrNotAuthorized = errors.New("not authorized")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrTokenMismatch   = errors.New("token mismatch")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
