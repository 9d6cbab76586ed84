package projector

import (
	"context"
	"iter"

	"github.com/dogmatiq/projector/internal/x/syncx"
)

// Watcher observes changes to a projector's state.
//
// A watcher only ever returns the most recent state. States that are replaced
// before the watcher's next call to Next() are never returned.
//
// Each watcher must only be used by a single goroutine. Use Projector.Watch()
// to obtain a watcher for each goroutine.
type Watcher[P any] struct {
	watch   *syncx.Watch[P]
	started bool
	version uint64
}

// Next returns the projection state.
//
// The first call returns the current state immediately. Subsequent calls
// block until the state changes, or ctx is canceled.
//
// Each returned value is an independent copy.
func (w *Watcher[P]) Next(ctx context.Context) (P, error) {
	if !w.started {
		v, n := w.watch.Load()
		w.started = true
		w.version = n
		return v, nil
	}

	v, n, err := w.watch.Wait(ctx, w.version)
	if err != nil {
		return v, err
	}

	w.version = n
	return v, nil
}

// Seq returns a sequence that yields the values returned by Next().
//
// The sequence ends when ctx is canceled.
func (w *Watcher[P]) Seq(ctx context.Context) iter.Seq[P] {
	return func(yield func(P) bool) {
		for {
			v, err := w.Next(ctx)
			if err != nil || !yield(v) {
				return
			}
		}
	}
}
