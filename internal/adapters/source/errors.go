package source

import "errors"

// Sentinel error kinds for table sources.
var (
	ErrTableNotFound = errors.New("table not found")
	ErrReadTable     = errors.New("read table failed")
)
