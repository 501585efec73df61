package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrPanic          = errors.New("aggregation panicked")
	ErrLengthMismatch = errors.New("snapshot count differs from timeline length")
)
