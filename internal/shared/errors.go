package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrDenied indicates the caller lacks permission for the action.
	ErrDenied = errors.New("permission denied")
	// ErrProcessing indicates a transform failure; nothing was persisted.
	ErrProcessing = errors.New("processing failed")
	// ErrPersistence wraps storage failures. The core never retries.
	ErrPersistence = errors.New("persistence failure")
)
