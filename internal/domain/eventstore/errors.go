package eventstore

import (
	"errors"
	"fmt"
)

// ErrMalformedInput marks structurally broken input: a required table,
// column or key is absent. It is the only error that aborts a run.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError locates the structural problem.
type MalformedInputError struct {
	Table  string
	Column string
	Row    int // 0-based record index; -1 for header-level problems
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("malformed input: table %s: column %s: %s", e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("malformed input: table %s: row %d: column %s: %s", e.Table, e.Row, e.Column, e.Reason)
}

// Unwrap lets errors.Is(err, ErrMalformedInput) match.
func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

func missingColumn(table, column string) error {
	return &MalformedInputError{Table: table, Column: column, Row: -1, Reason: "required column absent"}
}

func missingKey(table, column string, row int, reason string) error {
	return &MalformedInputError{Table: table, Column: column, Row: row, Reason: reason}
}
