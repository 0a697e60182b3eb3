// ABOUTME: Session error taxonomy
// ABOUTME: Resolution errors live in package auth; these cover storage and lifecycle

package session

import "errors"

var (
	// ErrNoSession is returned when an operation needs a current session and none exists.
	ErrNoSession = errors.New("no active session")

	// ErrSessionExpired is returned when the stored token is past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrStorageUnavailable wraps persistence failures. The session is not
	// assumed cleared when this is returned.
	ErrStorageUnavailable = errors.New("session storage unavailable")

	// ErrNotDelegated is returned by Refresh for primary account sessions,
	// whose tokens are renewed by the remote account service.
	ErrNotDelegated = errors.New("refresh is only supported for delegated sessions")
)
