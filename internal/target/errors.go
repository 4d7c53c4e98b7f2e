package target

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup or update against an unknown target id.
var ErrNotFound = errors.New("target not found")

// MalformedRecordError reports a stored record that no longer parses.
// It is surfaced rather than skipped so a corrupt target cannot vanish
// from listings without explanation.
type MalformedRecordError struct {
	ID  string
	Err error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("target %s: malformed record: %v", e.ID, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
