package label

import "errors"

var (
	// ErrUnknownTarget is returned for a target name with no rule.
	ErrUnknownTarget = errors.New("unknown target rule")
	// ErrNoTargetRule is returned when a Labeler has no rule.
	ErrNoTargetRule = errors.New("no target rule")
	// ErrShapeMismatch is returned when a row's width differs from the columns.
	ErrShapeMismatch = errors.New("row width does not match columns")
)
