package rag

import "errors"

// Sentinel errors classifying every failure the pipeline and its adapters
// can surface. Adapters wrap these with fmt.Errorf("pkg: detail: %w", …) so
// callers check the kind with errors.Is while the message keeps the failing
// operation's identity.
//
// Retry guidance: ErrProviderUnavailable, ErrStoreUnavailable, ErrRateLimited
// and ErrTimeout are transient and safe to retry with backoff — but retry
// policy lives with the caller, never inside this core. The remaining kinds
// require a caller or operator fix first.
var (
	// ErrInvalidInput means caller-supplied data violates a precondition
	// (empty question, non-positive top-k, oversized embed input).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig means static configuration violates an invariant.
	// Constructors fail fast with this kind; it never surfaces at call time.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrProviderUnavailable means an embedding or completion backend could
	// not be reached or refused the connection.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrStoreUnavailable means the vector store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRateLimited means a backend throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout means an external call exceeded its configured deadline.
	ErrTimeout = errors.New("timeout")

	// ErrDimensionMismatch means a vector's length disagrees with the
	// collection's configured dimensionality.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrConfigConflict means a collection already exists with a different
	// dimensionality or metric than requested.
	ErrConfigConflict = errors.New("config conflict")

	// ErrIndexNotFound means the queried collection does not exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrInvalidFilter means a query filter is malformed or references a
	// field the store cannot filter on.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Retryable reports whether err is one of the transient kinds a caller may
// retry with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout)
}
