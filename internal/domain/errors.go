package domain

import "errors"

var (
	// ErrNotFound is returned when a remote resource (post, category) does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized is returned when a remote service rejects our credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is returned when a remote service throttles us.
	ErrRateLimited = errors.New("rate limited")
	// ErrSecurityViolation marks text blocked by the security gate.
	ErrSecurityViolation = errors.New("security violation")
	// ErrGenerationExhausted is returned when no usable text could be generated.
	ErrGenerationExhausted = errors.New("generation exhausted")
)
