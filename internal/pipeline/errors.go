package pipeline

import (
	"errors"
	"fmt"

	"loanrisk/internal"
)

// ErrIO marks a source that could not be opened or parsed. It is fatal to
// the load that produced it.
var ErrIO = errors.New("load failed")

// RowError is a per-cell processing failure. The cell it describes is left
// untouched and processing continues with the next cell.
type RowError struct {
	Row    int
	ID     int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (id %d) column %s value %q: %v", e.Row, e.ID, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Failure flattens the error into the persisted form.
func (e *RowError) Failure() internal.RowFailure {
	reason := ""
	if e.Err != nil {
		reason = e.Err.Error()
	}
	return internal.RowFailure{Row: e.Row, ID: e.ID, Column: e.Column, Value: e.Value, Reason: reason}
}

// Failures converts a slice of row errors for storage.
func Failures(errs []*RowError) []internal.RowFailure {
	out := make([]internal.RowFailure, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Failure())
	}
	return out
}

func ioError(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, name, err)
}
