package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnextractable indicates an advisory carries neither the
	// secondary-assessment nor the primary-reporter namespace.
	ErrUnextractable = errors.New("advisory unextractable")

	// ErrMalformedVector indicates a vector string token without exactly one colon.
	ErrMalformedVector = errors.New("malformed vector string")

	// ErrConnectivity indicates the pre-run connectivity check failed.
	// The run is aborted before any work starts.
	ErrConnectivity = errors.New("connectivity check failed")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
