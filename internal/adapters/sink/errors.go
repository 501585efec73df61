package sink

import "errors"

// ErrWrite wraps failures writing the matrix.
var ErrWrite = errors.New("write matrix failed")
