package projector

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned by Projector.Run() if the projector has
// already been run.
var ErrAlreadyStarted = errors.New("projector has already been started")

// ErrorKind identifies the stage of a run at which an error occurred.
type ErrorKind int

const (
	// SubscriptionOpen indicates that the live subscription could not be
	// opened.
	SubscriptionOpen ErrorKind = iota + 1

	// CatchUpOpen indicates that the catch-up stream could not be opened.
	CatchUpOpen

	// StreamItem indicates that reading an event from either stream failed.
	StreamItem
)

func (k ErrorKind) String() string {
	switch k {
	case SubscriptionOpen:
		return "unable to open live subscription"
	case CatchUpOpen:
		return "unable to open catch-up stream"
	case StreamItem:
		return "unable to read event"
	default:
		return "unknown error"
	}
}

// Error is an error that caused a projector run to fail.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Err
}
