package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrConflict indicates a destination file already exists
	ErrConflict = errors.New("destination conflict")

	// ErrNotFound indicates a required resource (tool, row, file) was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidMode indicates a search mode other than "song" or "artist"
	ErrInvalidMode = errors.New("invalid search mode")

	// ErrInvalidTemplate indicates a destination template that cannot be parsed
	ErrInvalidTemplate = errors.New("invalid destination template")

	// ErrTemporary marks an error as transient so RetryWithBackoff tries again
	ErrTemporary = errors.New("temporarily unavailable")
)
