package fixtures

import (
	"github.com/dogmatiq/projector/eventstore"
	"github.com/google/uuid"
)

// AccountID identifies the source of a Transaction event.
type AccountID string

// Transaction is a domain event used in tests.
type Transaction struct {
	ID     string
	Amount int64
}

// Deposit returns a transaction that credits amount to an account.
func Deposit(amount int64) Transaction {
	return Transaction{
		ID:     uuid.NewString(),
		Amount: amount,
	}
}

// Withdrawal returns a transaction that debits amount from an account.
func Withdrawal(amount int64) Transaction {
	return Transaction{
		ID:     uuid.NewString(),
		Amount: -amount,
	}
}

// Event is a persisted Transaction.
type Event = eventstore.Persisted[AccountID, Transaction]

// NewEvent returns a persisted deposit with the given sequence number.
//
// The account ID and version are derived from seq so that events built with
// the same sequence number compare equal, apart from their transaction ID.
func NewEvent(seq uint64, amount int64) Event {
	return Event{
		SourceID: "<account>",
		Version:  uint32(seq) + 1,
		Sequence: seq,
		Event: Transaction{
			ID:     "<transaction>",
			Amount: amount,
		},
	}
}

// NewEvents returns deposits of 1 with each of the given sequence numbers.
func NewEvents(seqs ...uint64) []Event {
	events := make([]Event, len(seqs))

	for i, seq := range seqs {
		events[i] = NewEvent(seq, 1)
	}

	return events
}
