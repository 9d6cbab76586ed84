package grpcx

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
)

// Serve runs s until ctx is canceled or an error occurs.
//
// When ctx is canceled the server is stopped gracefully. Any RPCs that are
// still running after grace has elapsed are terminated.
//
// The caller must never call s.Stop() or s.GracefulStop().
func Serve(
	ctx context.Context,
	lis net.Listener,
	s *grpc.Server,
	grace time.Duration,
) error {
	// Create a context that is guaranteed to be cancelled when this function
	// exits. This prevents a leak in the goroutine below when the server exits
	// prematurely.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()

		timer := time.AfterFunc(grace, s.Stop)
		defer timer.Stop()

		s.GracefulStop()
	}()

	err := s.Serve(lis)

	// If the server exits cleanly, it is because Stop() or GracefulStop() was
	// called, which only happens when the context is canceled.
	if err == nil {
		<-ctx.Done()
		err = ctx.Err()
	}

	return err
}
