package main

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/google/uuid"
)

// demoAccounts are the accounts that demo transactions are recorded against.
var demoAccounts = []AccountID{"alice", "bob", "carol"}

// recordDemoTransactions records a random transaction against a random account
// every interval until ctx is canceled.
func recordDemoTransactions(
	ctx context.Context,
	app eventstore.Appender[AccountID, Transaction],
	interval time.Duration,
	logger logging.Logger,
) error {
	for {
		if err := linger.Sleep(ctx, interval); err != nil {
			return err
		}

		id := demoAccounts[rand.IntN(len(demoAccounts))]
		tx := Transaction{
			ID:     uuid.NewString(),
			Amount: rand.Int64N(2000) - 1000,
		}

		v, err := app.Append(ctx, id, eventstore.AnyVersion, tx)
		if err != nil {
			return err
		}

		logging.Debug(logger, "recorded transaction %s of %d against %s, now at version %d", tx.ID, tx.Amount, id, v)
	}
}
