package main

import (
	"maps"

	"github.com/dogmatiq/projector/eventstore"
)

// AccountID identifies a bank account.
type AccountID string

// Transaction is an event that changes the balance of an account.
type Transaction struct {
	ID     string
	Amount int64
}

// event is a recorded transaction.
type event = eventstore.Persisted[AccountID, Transaction]

// balances is a projection of the balance of each account.
type balances struct {
	Accounts map[AccountID]int64
}

func (b balances) Project(ev event) balances {
	b = b.Clone()

	if b.Accounts == nil {
		b.Accounts = map[AccountID]int64{}
	}

	b.Accounts[ev.SourceID] += ev.Event.Amount

	return b
}

func (b balances) Clone() balances {
	return balances{maps.Clone(b.Accounts)}
}

// activity is a projection of the number of transactions recorded and the
// largest single transaction.
type activity struct {
	Transactions int
	Largest      int64
}

func (a activity) Project(ev event) activity {
	a.Transactions++

	if abs(ev.Event.Amount) > abs(a.Largest) {
		a.Largest = ev.Event.Amount
	}

	return a
}

func (a activity) Clone() activity {
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
