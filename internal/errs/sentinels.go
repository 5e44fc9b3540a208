// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across transport/session/mutation layers.
var (
	// ErrNotFound indicates the requested entity does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates an authorization failure the pipeline could
	// not recover from with its single retry-after-renewal.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a permission denial (HTTP 403). It is a
	// business outcome, never a session problem.
	ErrForbidden = errors.New("forbidden")

	// ErrSessionExpired indicates credential renewal failed or the profile
	// endpoint rejected the session; credentials have been cleared.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoCredentials indicates an operation requiring authentication was
	// attempted with no stored credential pair.
	ErrNoCredentials = errors.New("no credentials (login required)")

	// ErrMutationInFlight indicates a vote/bookmark press on an entity that
	// already has an outstanding mutation; the press is ignored, not queued.
	ErrMutationInFlight = errors.New("mutation already in flight")

	// ErrRevertInFlight indicates a revert was requested while another
	// revert for the same artifact is outstanding.
	ErrRevertInFlight = errors.New("revert already in flight")
)
