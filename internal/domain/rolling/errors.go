package rolling

import "errors"

var (
	// ErrInvalidStat is returned when a stat declaration cannot be evaluated.
	ErrInvalidStat = errors.New("invalid stat")
	// ErrInvalidWindow is returned for a non-positive default window.
	ErrInvalidWindow = errors.New("invalid window size")
)
