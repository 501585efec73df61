package service

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrNoEvents       = errors.New("no events after normalization")
	ErrInvalidRequest = errors.New("invalid build request")
)
