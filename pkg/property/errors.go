package property

import "errors"

var (
	// ErrNotExist is returned by a Backend whose backing object is missing.
	ErrNotExist = errors.New("properties do not exist")

	// ErrInvalidConfig is returned for incomplete backend configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// S3 error classification
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	ErrOperationTimeout   = errors.New("operation timed out")
	ErrOperationCanceled  = errors.New("operation canceled")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
)
