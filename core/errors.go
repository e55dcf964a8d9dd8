package core

import "errors"

// Lifecycle and resource errors returned by core drivers. Callers match
// them with errors.Is; drivers wrap them with the failing step.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrOutOfMemory        = errors.New("out of memory")
)

// ErrTimeout reports a peripheral that never became ready
var ErrTimeout = errors.New("timeout")
