// Command projectord maintains in-memory projections of a bank ledger.
//
// It records events in a local store, serves them over gRPC and logs each new
// state of its projections. When PROJECTORD_REMOTE is set it builds its
// projections from another instance instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/projector"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/internal/x/loggingx"
	"golang.org/x/sync/errgroup"
)

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	ctx, cancel := newContext()
	defer cancel()

	if err := run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context) error {
	cfg, err := parseConfig()
	if err != nil {
		return err
	}

	var logger logging.Logger = logging.DefaultLogger
	if cfg.Debug {
		logger = logging.DebugLogger
	}

	g, ctx := errgroup.WithContext(ctx)

	var (
		store eventstore.Store[AccountID, Transaction]
		sub   eventstore.Subscriber[AccountID, Transaction]
	)

	if cfg.Remote != "" {
		client, closeConn, err := dial(cfg)
		if err != nil {
			return err
		}
		defer closeConn()

		logging.Log(logger, "building projections from %s", cfg.Remote)
		store, sub = client, client
	} else {
		local, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer local.Close()

		store, sub = local, local

		if cfg.ListenAddress != "" {
			g.Go(func() error {
				return serve(ctx, cfg, local, loggingx.WithPrefix(logger, "server | "))
			})
		}

		if cfg.DemoInterval > 0 {
			g.Go(func() error {
				return recordDemoTransactions(ctx, local, cfg.DemoInterval, loggingx.WithPrefix(logger, "demo | "))
			})
		}
	}

	b := projector.NewBuilder(store, sub, projector.WithLogger(logger))

	g.Go(func() error {
		return project[balances](ctx, b, loggingx.WithPrefix(logger, "balances | "))
	})

	g.Go(func() error {
		return project[activity](ctx, b, loggingx.WithPrefix(logger, "activity | "))
	})

	return g.Wait()
}
