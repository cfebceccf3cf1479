package featureapi

import "errors"

var (
	// ErrInvalidRequest indicates a request body or query that cannot be decoded.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrValidation indicates a state the registry rejected.
	ErrValidation = errors.New("validation failed")
)
