package eventstore

import (
	"errors"
	"fmt"
)

// ErrCursorClosed is returned by Cursor.Next() if the cursor is closed.
var ErrCursorClosed = errors.New("cursor is closed")

// ErrStoreClosed is returned when an operation is attempted on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// ConflictError is returned by Appender.Append() when the source is not at
// the expected version.
type ConflictError struct {
	Expected uint32
	Actual   uint32
}

func (e ConflictError) Error() string {
	return fmt.Sprintf(
		"optimistic concurrency conflict, expected version %d, source is at version %d",
		e.Expected,
		e.Actual,
	)
}
