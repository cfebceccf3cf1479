package feature

import "errors"

// Predefined errors for the feature package.
var (
	// ErrStorageUnavailable indicates that a storage backend was reached but failed.
	// It is never translated into "feature disabled".
	ErrStorageUnavailable = errors.New("feature storage unavailable")

	// ErrUnsupported indicates that a source does not support the requested operation,
	// typically a write to a read-only source.
	ErrUnsupported = errors.New("feature storage operation not supported")

	// ErrUnknownStrategy indicates that a state references a strategy id that is not registered.
	ErrUnknownStrategy = errors.New("unknown activation strategy")

	// ErrMalformedEntry indicates that a stored value could not be parsed.
	ErrMalformedEntry = errors.New("malformed feature storage entry")

	// ErrInvalidState indicates that the provided state is nil or has no feature.
	ErrInvalidState = errors.New("invalid feature state")

	// ErrInvalidParameter indicates that a strategy parameter has an unusable value.
	ErrInvalidParameter = errors.New("invalid activation strategy parameter")
)
