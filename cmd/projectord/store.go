package main

import (
	"context"
	"net"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/boltstore"
	"github.com/dogmatiq/projector/eventstore/memorystore"
	"github.com/dogmatiq/projector/eventstore/networkstore"
	"github.com/dogmatiq/projector/eventstore/sqlstore"
	"github.com/dogmatiq/projector/internal/x/grpcx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// localStore is an event store that records events in this process.
type localStore interface {
	eventstore.Store[AccountID, Transaction]
	eventstore.Subscriber[AccountID, Transaction]
	eventstore.Appender[AccountID, Transaction]
	Close() error
}

// openStore opens the event store selected by cfg.
func openStore(
	ctx context.Context,
	cfg config,
	logger logging.Logger,
) (localStore, error) {
	ctx, cancel := linger.ContextWithTimeout(ctx, cfg.OpenTimeout)
	defer cancel()

	switch cfg.Store {
	case "sqlite":
		logging.Log(logger, "opening sqlite store at %s", cfg.SQLiteDSN)
		return sqlstore.Open[AccountID, Transaction](
			ctx,
			cfg.SQLiteDSN,
			sqlstore.WithLogger(logger),
		)

	case "memory":
		logging.Log(logger, "using in-memory store, events are lost on shutdown")
		return &memorystore.Store[AccountID, Transaction]{}, nil

	default:
		logging.Log(logger, "opening bolt store at %s", cfg.BoltPath)
		return boltstore.Open[AccountID, Transaction](
			ctx,
			cfg.BoltPath,
			boltstore.WithLogger(logger),
		)
	}
}

// serve serves store over gRPC until ctx is canceled.
func serve(
	ctx context.Context,
	cfg config,
	store localStore,
	logger logging.Logger,
) error {
	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}

	server := grpc.NewServer()
	networkstore.RegisterServer(
		server,
		store,
		store,
		networkstore.WithLogger(logger),
	)

	logging.Log(logger, "serving events on %s", lis.Addr())

	return grpcx.Serve(ctx, lis, server, cfg.ShutdownTimeout)
}

// dial returns a client for the event store served by another instance.
func dial(cfg config) (*networkstore.Client[AccountID, Transaction], func() error, error) {
	conn, err := grpc.NewClient(
		cfg.Remote,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, err
	}

	return networkstore.NewClient[AccountID, Transaction](conn), conn.Close, nil
}
