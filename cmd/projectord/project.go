package main

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/projector"
	"golang.org/x/sync/errgroup"
)

// retryStrategy is the delay between failed projector runs.
var retryStrategy backoff.Strategy = backoff.WithTransforms(
	backoff.Exponential(100*time.Millisecond),
	linger.FullJitter,
	linger.Limiter(0, 30*time.Second),
)

// project maintains a projection of type P until ctx is canceled, logging
// each new state.
//
// Projectors keep no checkpoint, so each retry builds a new projector that
// reads every event again.
func project[P projector.Projection[P, AccountID, Transaction]](
	ctx context.Context,
	b *projector.Builder[AccountID, Transaction],
	logger logging.Logger,
) error {
	for n := uint(0); ; n++ {
		p := projector.Build[P](b)

		err := runAndReport(ctx, p, logger)
		if err == nil {
			// The live subscription only ends when the store is closed.
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := retryStrategy(err, n)
		logging.Log(logger, "projector failed, retrying in %s: %s", delay, err)

		if err := linger.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// runAndReport runs p, logging its state each time it changes.
func runAndReport[P projector.Projection[P, AccountID, Transaction]](
	ctx context.Context,
	p *projector.Projector[P, AccountID, Transaction],
	logger logging.Logger,
) error {
	g, ctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	g.Go(func() error {
		defer close(stop)
		return p.Run(ctx)
	})

	g.Go(func() error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()

		for state := range p.Watch().Seq(ctx) {
			if seq, ok := p.Watermark(); ok {
				logging.Log(logger, "%+v (at sequence number %d)", state, seq)
			}
		}

		return nil
	})

	return g.Wait()
}
