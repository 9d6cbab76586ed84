// Package codec encodes events and source IDs for the durable and networked
// event stores.
//
// Values are encoded as deterministic CBOR, so that equal source IDs always
// produce identical keys.
package codec

import (
	"fmt"

	"github.com/dogmatiq/projector/eventstore"
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

// Marshal returns the binary representation of v.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// envelope is the encoded form of an eventstore.Persisted.
type envelope[ID comparable, T any] struct {
	SourceID ID     `cbor:"1,keyasint"`
	Version  uint32 `cbor:"2,keyasint"`
	Sequence uint64 `cbor:"3,keyasint"`
	Event    T      `cbor:"4,keyasint"`
}

// MarshalEvent returns the binary representation of ev.
func MarshalEvent[ID comparable, T any](ev eventstore.Persisted[ID, T]) ([]byte, error) {
	data, err := encMode.Marshal(envelope[ID, T](ev))
	if err != nil {
		return nil, fmt.Errorf("unable to marshal event %d: %w", ev.Sequence, err)
	}

	return data, nil
}

// UnmarshalEvent decodes an event from its binary representation.
func UnmarshalEvent[ID comparable, T any](data []byte) (eventstore.Persisted[ID, T], error) {
	var env envelope[ID, T]

	if err := decMode.Unmarshal(data, &env); err != nil {
		return eventstore.Persisted[ID, T]{}, fmt.Errorf("unable to unmarshal event: %w", err)
	}

	return eventstore.Persisted[ID, T](env), nil
}

func mustEncMode() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return m
}

func mustDecMode() cbor.DecMode {
	m, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return m
}
