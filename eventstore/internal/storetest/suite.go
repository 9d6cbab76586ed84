// Package storetest declares behavioural tests that every event store
// implementation must pass.
package storetest

import (
	"context"
	"time"

	"github.com/dogmatiq/projector/eventstore"
	. "github.com/dogmatiq/projector/internal/fixtures"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// Out is a container for values that are provided by the store-specific
// "before" function to the test-suite.
type Out struct {
	// Store is the store under test.
	Store eventstore.Store[AccountID, Transaction]

	// Subscriber is the subscriber under test. It must deliver the events
	// recorded by Appender.
	Subscriber eventstore.Subscriber[AccountID, Transaction]

	// Appender records events into the store under test.
	Appender eventstore.Appender[AccountID, Transaction]

	// Close closes the store, ending any subscriptions.
	Close func() error

	// TestTimeout is the maximum duration allowed for each test.
	TestTimeout time.Duration

	// AssumeBlockingDuration specifies how long the tests should wait before
	// assuming a call to Cursor.Next() is successfully blocking, waiting for a
	// new event, as opposed to in the process of "checking" if any events are
	// already available.
	AssumeBlockingDuration time.Duration
}

const (
	// DefaultTestTimeout is the default test timeout.
	DefaultTestTimeout = 3 * time.Second

	// DefaultAssumeBlockingDuration is the default "assumed blocking duration".
	DefaultAssumeBlockingDuration = 150 * time.Millisecond
)

// Declare declares generic behavioral tests for a specific store
// implementation.
func Declare(
	before func(context.Context) Out,
	after func(),
) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		out    Out

		tx0 = Deposit(100)
		tx1 = Withdrawal(25)
		tx2 = Deposit(10)
		tx3 = Deposit(5)
	)

	ginkgo.BeforeEach(func() {
		setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelSetup()

		out = before(setupCtx)

		if out.TestTimeout <= 0 {
			out.TestTimeout = DefaultTestTimeout
		}

		if out.AssumeBlockingDuration <= 0 {
			out.AssumeBlockingDuration = DefaultAssumeBlockingDuration
		}

		ctx, cancel = context.WithTimeout(context.Background(), out.TestTimeout)
	})

	ginkgo.AfterEach(func() {
		if after != nil {
			after()
		}

		cancel()
	})

	appendEvents := func(id AccountID, events ...Transaction) {
		_, err := out.Appender.Append(ctx, id, eventstore.AnyVersion, events...)
		gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
	}

	// readAll reads every event from a finite cursor and closes it.
	readAll := func(
		cur eventstore.Cursor[AccountID, Transaction],
		err error,
	) []Event {
		gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())
		defer cur.Close()

		var events []Event

		for {
			ev, ok, err := cur.Next(ctx)
			gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())

			if !ok {
				return events
			}

			events = append(events, ev)
		}
	}

	ginkgo.Describe("func Append()", func() {
		ginkgo.It("returns the version of the source after the events are recorded", func() {
			v, err := out.Appender.Append(ctx, "<account-a>", eventstore.ExactVersion(0), tx0, tx1)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(v).To(gomega.BeNumerically("==", 2))

			v, err = out.Appender.Append(ctx, "<account-a>", eventstore.ExactVersion(2), tx2)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(v).To(gomega.BeNumerically("==", 3))
		})

		ginkgo.It("tracks versions independently for each source", func() {
			appendEvents("<account-a>", tx0, tx1)

			v, err := out.Appender.Append(ctx, "<account-b>", eventstore.ExactVersion(0), tx2)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(v).To(gomega.BeNumerically("==", 1))
		})

		ginkgo.It("returns the current version if there are no events", func() {
			appendEvents("<account-a>", tx0)

			v, err := out.Appender.Append(ctx, "<account-a>", eventstore.AnyVersion)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(v).To(gomega.BeNumerically("==", 1))
		})

		ginkgo.It("returns an error if the source is not at the expected version", func() {
			appendEvents("<account-a>", tx0)

			_, err := out.Appender.Append(ctx, "<account-a>", eventstore.ExactVersion(0), tx1)
			gomega.Expect(err).To(gomega.Equal(
				eventstore.ConflictError{
					Expected: 0,
					Actual:   1,
				},
			))
		})

		ginkgo.It("does not record any events if there is a conflict", func() {
			appendEvents("<account-a>", tx0)

			_, err := out.Appender.Append(ctx, "<account-a>", eventstore.ExactVersion(5), tx1, tx2)
			gomega.Expect(err).To(gomega.HaveOccurred())

			events := readAll(out.Store.StreamAll(ctx, eventstore.SelectAll))
			gomega.Expect(events).To(gomega.HaveLen(1))
		})

		ginkgo.It("returns an error if the store is closed", func() {
			err := out.Close()
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			_, err = out.Appender.Append(ctx, "<account-a>", eventstore.AnyVersion, tx0)
			gomega.Expect(err).To(gomega.MatchError(eventstore.ErrStoreClosed))
		})
	})

	ginkgo.Describe("func Stream()", func() {
		ginkgo.BeforeEach(func() {
			appendEvents("<account-a>", tx0)
			appendEvents("<account-b>", tx1)
			appendEvents("<account-a>", tx2, tx3)
		})

		ginkgo.It("returns only the events produced by the given source", func() {
			events := readAll(out.Store.Stream(ctx, "<account-a>", eventstore.SelectAll))
			gomega.Expect(events).To(gomega.Equal(
				[]Event{
					{SourceID: "<account-a>", Version: 1, Sequence: 0, Event: tx0},
					{SourceID: "<account-a>", Version: 2, Sequence: 2, Event: tx2},
					{SourceID: "<account-a>", Version: 3, Sequence: 3, Event: tx3},
				},
			))
		})

		ginkgo.It("honours the initial version", func() {
			events := readAll(out.Store.Stream(ctx, "<account-a>", eventstore.SelectFrom(2)))
			gomega.Expect(events).To(gomega.Equal(
				[]Event{
					{SourceID: "<account-a>", Version: 2, Sequence: 2, Event: tx2},
					{SourceID: "<account-a>", Version: 3, Sequence: 3, Event: tx3},
				},
			))
		})

		ginkgo.It("returns an empty stream for an unknown source", func() {
			events := readAll(out.Store.Stream(ctx, "<unknown>", eventstore.SelectAll))
			gomega.Expect(events).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("func StreamAll()", func() {
		ginkgo.BeforeEach(func() {
			appendEvents("<account-a>", tx0)
			appendEvents("<account-b>", tx1, tx2)
		})

		ginkgo.It("returns all events in sequence order", func() {
			events := readAll(out.Store.StreamAll(ctx, eventstore.SelectAll))
			gomega.Expect(events).To(gomega.Equal(
				[]Event{
					{SourceID: "<account-a>", Version: 1, Sequence: 0, Event: tx0},
					{SourceID: "<account-b>", Version: 1, Sequence: 1, Event: tx1},
					{SourceID: "<account-b>", Version: 2, Sequence: 2, Event: tx2},
				},
			))
		})

		ginkgo.It("honours the initial sequence number", func() {
			events := readAll(out.Store.StreamAll(ctx, eventstore.SelectFrom(2)))
			gomega.Expect(events).To(gomega.Equal(
				[]Event{
					{SourceID: "<account-b>", Version: 2, Sequence: 2, Event: tx2},
				},
			))
		})

		ginkgo.It("returns an empty stream if the initial sequence number is beyond the end", func() {
			events := readAll(out.Store.StreamAll(ctx, eventstore.SelectFrom(100)))
			gomega.Expect(events).To(gomega.BeEmpty())
		})

		ginkgo.It("does not include events recorded after the stream is opened", func() {
			cur, err := out.Store.StreamAll(ctx, eventstore.SelectAll)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			appendEvents("<account-a>", tx3)

			events := readAll(cur, nil)
			gomega.Expect(events).To(gomega.HaveLen(3))
		})
	})

	ginkgo.Describe("func SubscribeAll()", func() {
		ginkgo.It("returns only events recorded after the subscription is opened", func() {
			appendEvents("<account-a>", tx0)

			cur, err := out.Subscriber.SubscribeAll(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer cur.Close()

			appendEvents("<account-b>", tx1)

			ev, ok, err := cur.Next(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(ev).To(gomega.Equal(
				Event{SourceID: "<account-b>", Version: 1, Sequence: 1, Event: tx1},
			))
		})

		ginkgo.It("blocks until an event is recorded", func() {
			cur, err := out.Subscriber.SubscribeAll(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer cur.Close()

			go func() {
				defer ginkgo.GinkgoRecover()
				time.Sleep(out.AssumeBlockingDuration)
				appendEvents("<account-a>", tx0)
			}()

			ev, ok, err := cur.Next(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(ev.Event).To(gomega.Equal(tx0))
		})

		ginkgo.It("returns an error if the context is canceled while blocked", func() {
			cur, err := out.Subscriber.SubscribeAll(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer cur.Close()

			ctx, cancel := context.WithTimeout(ctx, out.AssumeBlockingDuration)
			defer cancel()

			_, _, err = cur.Next(ctx)
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("ends the stream when the store is closed", func() {
			cur, err := out.Subscriber.SubscribeAll(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer cur.Close()

			appendEvents("<account-a>", tx0)

			err = out.Close()
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			_, ok, err := cur.Next(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())

			_, ok, err = cur.Next(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("delivers every event exactly once across catch-up and subscription", func() {
			appendEvents("<account-a>", tx0, tx1)

			sub, err := out.Subscriber.SubscribeAll(ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer sub.Close()

			appendEvents("<account-b>", tx2)

			catchUp := readAll(out.Store.StreamAll(ctx, eventstore.SelectAll))

			appendEvents("<account-b>", tx3)

			seen := map[uint64]int{}
			for _, ev := range catchUp {
				seen[ev.Sequence]++
			}

			for len(seen) < 4 {
				ev, ok, err := sub.Next(ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				seen[ev.Sequence]++
			}

			gomega.Expect(seen).To(gomega.HaveKey(uint64(0)))
			gomega.Expect(seen).To(gomega.HaveKey(uint64(1)))
			gomega.Expect(seen).To(gomega.HaveKey(uint64(2)))
			gomega.Expect(seen).To(gomega.HaveKey(uint64(3)))
		})
	})

	ginkgo.Describe("type Cursor", func() {
		ginkgo.Describe("func Next()", func() {
			ginkgo.It("returns an error if the cursor is closed", func() {
				appendEvents("<account-a>", tx0)

				cur, err := out.Store.StreamAll(ctx, eventstore.SelectAll)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = cur.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, _, err = cur.Next(ctx)
				gomega.Expect(err).To(gomega.MatchError(eventstore.ErrCursorClosed))
			})
		})
	})
}
