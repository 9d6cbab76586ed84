package eventstore

import "context"

// A Cursor reads events from a stream.
//
// Cursors are not intended to be used by multiple goroutines concurrently.
type Cursor[ID comparable, T any] interface {
	// Next returns the next event on the stream.
	//
	// ok is false if the stream has ended. Catch-up streams end once every
	// event that was recorded when the stream was opened has been returned.
	// Live streams end when the subscriber is closed; until then Next() blocks
	// until an event is recorded or ctx is canceled.
	//
	// If the cursor is closed before or during a call to Next(), it returns
	// ErrCursorClosed.
	Next(ctx context.Context) (ev Persisted[ID, T], ok bool, err error)

	// Close stops the cursor.
	//
	// Any current or future calls to Next() return ErrCursorClosed.
	Close() error
}

// Store provides access to events that have already been recorded.
type Store[ID comparable, T any] interface {
	// Stream returns a cursor over the events produced by a single source, in
	// version order.
	//
	// s.From is the first version to include.
	Stream(ctx context.Context, id ID, s Select) (Cursor[ID, T], error)

	// StreamAll returns a cursor over the events produced by all sources, in
	// sequence order.
	//
	// s.From is the first sequence number to include. The stream is finite;
	// events recorded after StreamAll() returns are not included.
	StreamAll(ctx context.Context, s Select) (Cursor[ID, T], error)
}

// Subscriber provides access to events as they are recorded.
type Subscriber[ID comparable, T any] interface {
	// SubscribeAll returns a cursor over every event recorded after the call
	// returns, in sequence order.
	SubscribeAll(ctx context.Context) (Cursor[ID, T], error)
}

// Appender records new events.
type Appender[ID comparable, T any] interface {
	// Append records events produced by the source identified by id.
	//
	// v is the version the source is expected to be at before the events are
	// recorded. It returns the version of the source after the events are
	// recorded.
	Append(ctx context.Context, id ID, v Expected, events ...T) (uint32, error)
}
