package quote

import "errors"

// Sentinel errors shared across backends. Callers test them with errors.Is;
// backends wrap them with context.
var (
	// ErrDuplicateKey reports an insert collision on UUID. Not retried.
	ErrDuplicateKey = errors.New("quote: duplicate uuid")

	// ErrInvalidCategory reports a category code outside the closed set.
	ErrInvalidCategory = errors.New("quote: invalid category")

	// ErrNotFound reports a point-lookup miss by UUID.
	ErrNotFound = errors.New("quote: not found")

	// ErrNoMatch reports that a filter excludes every stored quote. It is an
	// expected selection outcome, not a system failure.
	ErrNoMatch = errors.New("quote: no match for filter")
)
