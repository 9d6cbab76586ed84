package eventstore

// Persisted is an event that has been recorded by a store.
type Persisted[ID comparable, T any] struct {
	// SourceID is the identity of the source that produced the event, such as
	// an aggregate instance.
	SourceID ID

	// Version is the 1-based position of the event within the events produced
	// by SourceID.
	Version uint32

	// Sequence is the 0-based position of the event within all events recorded
	// by the store.
	Sequence uint64

	// Event is the domain event itself.
	Event T
}

// SequenceNumber returns the position of the event within all events recorded
// by the store.
func (p Persisted[ID, T]) SequenceNumber() uint64 {
	return p.Sequence
}

// Select specifies the lower-bound of a stream.
//
// When used with Store.StreamAll() From is a sequence number. When used with
// Store.Stream() From is a version.
type Select struct {
	From uint64
}

// SelectAll is a Select that includes every event.
var SelectAll = Select{}

// SelectFrom returns a Select that begins at n, inclusive.
func SelectFrom(n uint64) Select {
	return Select{From: n}
}
