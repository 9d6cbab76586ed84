package fixtures

import (
	"maps"
	"slices"
)

// Balances is a projection of the balance of every account.
type Balances struct {
	Accounts map[AccountID]int64
	Applied  []uint64
}

// Project returns the balances after ev has been applied.
func (b Balances) Project(ev Event) Balances {
	b = b.Clone()

	if b.Accounts == nil {
		b.Accounts = map[AccountID]int64{}
	}

	b.Accounts[ev.SourceID] += ev.Event.Amount
	b.Applied = append(b.Applied, ev.Sequence)

	return b
}

// Clone returns a deep copy of b.
func (b Balances) Clone() Balances {
	return Balances{
		Accounts: maps.Clone(b.Accounts),
		Applied:  slices.Clone(b.Applied),
	}
}

// Counter is a projection that counts the events it has seen.
type Counter struct {
	Count int
	Last  uint64
}

// Project returns the counter after ev has been applied.
func (c Counter) Project(ev Event) Counter {
	return Counter{
		Count: c.Count + 1,
		Last:  ev.Sequence,
	}
}

// Clone returns a copy of c.
func (c Counter) Clone() Counter {
	return c
}

// FoldAll applies events to the zero-value of a Balances projection.
func FoldAll(events ...Event) Balances {
	var b Balances
	for _, ev := range events {
		b = b.Project(ev)
	}
	return b
}
