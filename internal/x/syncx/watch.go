package syncx

import (
	"context"
	"sync"
)

// Watch is a value that is published by a single writer and observed by any
// number of readers.
//
// Readers only ever see the most recently published value. Values published
// while a reader is not waiting are never queued for that reader.
type Watch[T any] struct {
	m       sync.Mutex
	value   T
	version uint64
	changed chan struct{}
	clone   func(T) T
}

// NewWatch returns a new Watch with the given initial value.
//
// clone is used to copy the current value each time it is read, so that
// readers never share state with the writer or each other.
func NewWatch[T any](initial T, clone func(T) T) *Watch[T] {
	return &Watch[T]{
		value:   initial,
		changed: make(chan struct{}),
		clone:   clone,
	}
}

// Publish replaces the current value and wakes any blocked readers.
func (w *Watch[T]) Publish(v T) {
	w.m.Lock()
	defer w.m.Unlock()

	w.value = v
	w.version++

	close(w.changed)
	w.changed = make(chan struct{})
}

// Load returns a copy of the current value and its version.
//
// The version of the initial value is zero.
func (w *Watch[T]) Load() (T, uint64) {
	w.m.Lock()
	defer w.m.Unlock()

	return w.clone(w.value), w.version
}

// Wait blocks until the version of the current value is greater than after,
// then returns a copy of the current value and its version.
func (w *Watch[T]) Wait(ctx context.Context, after uint64) (T, uint64, error) {
	for {
		w.m.Lock()

		if w.version > after {
			v, n := w.clone(w.value), w.version
			w.m.Unlock()
			return v, n, nil
		}

		changed := w.changed
		w.m.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, 0, ctx.Err()
		case <-changed:
		}
	}
}
