package bboltx

import (
	"context"
	"errors"
	"os"

	"github.com/dogmatiq/linger"
	"go.etcd.io/bbolt"
)

// DefaultFileMode is the file mode used to create a database file when none
// is specified.
const DefaultFileMode os.FileMode = 0600

// Open creates and opens a database at the given path.
//
// If mode is zero, DefaultFileMode is used.
//
// The time spent waiting for the file lock is bounded by the sooner of
// opts.Timeout and the deadline of ctx.
func Open(
	ctx context.Context,
	path string,
	mode os.FileMode,
	opts *bbolt.Options,
) (*bbolt.DB, error) {
	if mode == 0 {
		mode = DefaultFileMode
	}

	if ctx.Err() != nil {
		// A non-positive timeout would be replaced with bbolt's default, so an
		// expired context has to be handled here.
		return nil, ctx.Err()
	}

	clone := *bbolt.DefaultOptions
	if opts != nil {
		clone = *opts
	}

	if timeout, ok := linger.FromContextDeadline(ctx); ok {
		if clone.Timeout == 0 || clone.Timeout > timeout {
			clone.Timeout = timeout
		}
	}

	db, err := bbolt.Open(path, mode, &clone)

	if errors.Is(err, bbolt.ErrTimeout) {
		err = context.DeadlineExceeded
	}

	return db, err
}
