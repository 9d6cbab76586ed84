package projector_test

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	. "github.com/dogmatiq/projector"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/memorystore"
	. "github.com/dogmatiq/projector/internal/fixtures"
	. "github.com/dogmatiq/projector/internal/x/gomegax"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Projector", func() {
	var (
		ctx        context.Context
		catchUp    *CursorStub
		live       *CursorStub
		store      *StoreStub
		subscriber *SubscriberStub
		logger     *logging.BufferedLogger
		builder    *Builder[AccountID, Transaction]
		projector  *Projector[Balances, AccountID, Transaction]
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
		DeferCleanup(cancel)

		catchUp = NewCursor(nil, nil)
		live = NewCursor(nil, nil)

		store = &StoreStub{
			StreamAllFunc: func(
				context.Context,
				eventstore.Select,
			) (eventstore.Cursor[AccountID, Transaction], error) {
				return catchUp, nil
			},
		}

		subscriber = &SubscriberStub{
			SubscribeAllFunc: func(
				context.Context,
			) (eventstore.Cursor[AccountID, Transaction], error) {
				return live, nil
			},
		}

		logger = &logging.BufferedLogger{CaptureDebug: true}
		builder = NewBuilder(store, subscriber, WithLogger(logger))
		projector = Build[Balances](builder)
	})

	// expectNoBroadcast asserts that w has already returned the latest state.
	expectNoBroadcast := func(w *Watcher[Balances]) {
		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := w.Next(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	}

	Describe("func Run()", func() {
		It("applies every event from the catch-up stream", func() {
			events := NewEvents(0, 1, 2, 3, 4)
			catchUp.Events = events

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			state, err := projector.Watch().Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(state).To(EqualX(FoldAll(events...)))
		})

		It("applies events from the live stream after the catch-up stream", func() {
			catchUp.Events = NewEvents(1, 2)
			live.Events = NewEvents(3, 4)

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			state, err := projector.Watch().Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(state.Applied).To(Equal([]uint64{1, 2, 3, 4}))
		})

		It("applies each event only once when the streams overlap", func() {
			catchUp.Events = NewEvents(1, 2, 3)
			live.Events = NewEvents(2, 3, 4)

			watcher := projector.Watch()
			_, err := watcher.Next(ctx) // initial state
			Expect(err).ShouldNot(HaveOccurred())

			err = projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			state, err := watcher.Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(state).To(EqualX(FoldAll(NewEvents(1, 2, 3, 4)...)))

			expectNoBroadcast(watcher)
		})

		It("discards duplicates of an event with the largest possible sequence number", func() {
			catchUp.Events = NewEvents(math.MaxUint64)
			live.Events = NewEvents(math.MaxUint64, 5)

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			state, err := projector.Watch().Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(state.Applied).To(Equal([]uint64{math.MaxUint64}))

			seq, ok := projector.Watermark()
			Expect(ok).To(BeTrue())
			Expect(seq).To(Equal(uint64(math.MaxUint64)))
		})

		It("discards events with sequence numbers below the watermark", func() {
			catchUp.Events = NewEvents(5, 6)
			live.Events = []Event{
				NewEvent(1, 1000),
				NewEvent(6, 1000),
				NewEvent(7, 1),
			}

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			state, err := projector.Watch().Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(state.Applied).To(Equal([]uint64{5, 6, 7}))
			Expect(state.Accounts["<account>"]).To(BeNumerically("==", 3))
		})

		It("applies an event with a sequence number of zero", func() {
			catchUp.Events = NewEvents(0)
			live.Events = NewEvents(0)

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			state, err := projector.Watch().Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(state.Applied).To(Equal([]uint64{0}))
		})

		It("opens the live subscription before the catch-up stream", func() {
			var order []string

			subscriber.SubscribeAllFunc = func(
				context.Context,
			) (eventstore.Cursor[AccountID, Transaction], error) {
				order = append(order, "subscribe")
				return live, nil
			}

			store.StreamAllFunc = func(
				_ context.Context,
				sel eventstore.Select,
			) (eventstore.Cursor[AccountID, Transaction], error) {
				Expect(sel).To(Equal(eventstore.SelectAll))
				order = append(order, "catch-up")
				return catchUp, nil
			}

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(order).To(Equal([]string{"subscribe", "catch-up"}))
		})

		It("closes both cursors", func() {
			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(catchUp.IsClosed()).To(BeTrue())
			Expect(live.IsClosed()).To(BeTrue())
		})

		It("sets the state to Completed when the streams end", func() {
			Expect(projector.State()).To(Equal(Idle))

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(projector.State()).To(Equal(Completed))
		})

		It("returns ErrAlreadyStarted if the projector has already been run", func() {
			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = projector.Run(ctx)
			Expect(err).To(Equal(ErrAlreadyStarted))
			Expect(projector.State()).To(Equal(Completed))
		})

		It("logs progress", func() {
			catchUp.Events = NewEvents(1, 2)
			live.Events = NewEvents(2)

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(logger.Messages()).To(ContainElements(
				logging.BufferedLogMessage{
					Message: "projector[fixtures.Balances] | caught up to sequence number 2, consuming live events",
				},
				logging.BufferedLogMessage{
					Message: "projector[fixtures.Balances] | discarded event 2, events up to 2 have already been applied",
					IsDebug: true,
				},
				logging.BufferedLogMessage{
					Message: "projector[fixtures.Balances] | run completed, the live subscription has ended",
				},
			))
		})

		When("an error occurs", func() {
			cause := errors.New("<error>")

			It("returns a SubscriptionOpen error if the subscription can not be opened", func() {
				subscriber.SubscribeAllFunc = func(
					context.Context,
				) (eventstore.Cursor[AccountID, Transaction], error) {
					return nil, cause
				}

				err := projector.Run(ctx)

				var e *Error
				Expect(errors.As(err, &e)).To(BeTrue())
				Expect(e.Kind).To(Equal(SubscriptionOpen))
				Expect(err).To(MatchError(cause))
				Expect(err).To(MatchError("unable to open live subscription: <error>"))
				Expect(projector.State()).To(Equal(Failed))
			})

			It("returns a CatchUpOpen error if the catch-up stream can not be opened", func() {
				store.StreamAllFunc = func(
					context.Context,
					eventstore.Select,
				) (eventstore.Cursor[AccountID, Transaction], error) {
					return nil, cause
				}

				err := projector.Run(ctx)

				var e *Error
				Expect(errors.As(err, &e)).To(BeTrue())
				Expect(e.Kind).To(Equal(CatchUpOpen))
				Expect(err).To(MatchError(cause))
				Expect(live.IsClosed()).To(BeTrue())
				Expect(projector.State()).To(Equal(Failed))
			})

			It("returns a StreamItem error if the catch-up stream fails", func() {
				catchUp.Events = NewEvents(1, 2, 3)
				catchUp.Err = cause

				watcher := projector.Watch()
				_, err := watcher.Next(ctx) // initial state
				Expect(err).ShouldNot(HaveOccurred())

				err = projector.Run(ctx)

				var e *Error
				Expect(errors.As(err, &e)).To(BeTrue())
				Expect(e.Kind).To(Equal(StreamItem))
				Expect(err).To(MatchError(cause))

				seq, ok := projector.Watermark()
				Expect(ok).To(BeTrue())
				Expect(seq).To(BeNumerically("==", 3))

				state, err := watcher.Next(ctx)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(state).To(EqualX(FoldAll(NewEvents(1, 2, 3)...)))
				expectNoBroadcast(watcher)

				Expect(live.Reads()).To(BeZero())
				Expect(projector.State()).To(Equal(Failed))
			})

			It("returns a StreamItem error if the live stream fails", func() {
				catchUp.Events = NewEvents(1)
				live.Events = NewEvents(2)
				live.Err = cause

				err := projector.Run(ctx)

				var e *Error
				Expect(errors.As(err, &e)).To(BeTrue())
				Expect(e.Kind).To(Equal(StreamItem))

				seq, ok := projector.Watermark()
				Expect(ok).To(BeTrue())
				Expect(seq).To(BeNumerically("==", 2))
			})

			It("includes errors that occur when closing the cursors", func() {
				closeErr := errors.New("<close error>")
				catchUp.Err = cause
				live.CloseErr = closeErr

				err := projector.Run(ctx)
				Expect(err).To(MatchError(cause))
				Expect(err).To(MatchError(closeErr))

				var e *Error
				Expect(errors.As(err, &e)).To(BeTrue())
				Expect(e.Kind).To(Equal(StreamItem))
			})

			It("fails if the streams end successfully but a cursor can not be closed", func() {
				closeErr := errors.New("<close error>")
				catchUp.CloseErr = closeErr

				err := projector.Run(ctx)
				Expect(err).To(MatchError(closeErr))
				Expect(projector.State()).To(Equal(Failed))
			})

			It("marks the projector as failed if the projection panics", func() {
				catchUp.Events = NewEvents(1, 2)

				p := Build[explosive](builder)

				Expect(func() {
					p.Run(ctx)
				}).To(PanicWith("<panic>"))

				Expect(p.State()).To(Equal(Failed))
				Expect(catchUp.IsClosed()).To(BeTrue())
				Expect(live.IsClosed()).To(BeTrue())

				Expect(logger.Messages()).To(ContainElement(
					logging.BufferedLogMessage{
						Message: "projector[projector_test.explosive] | run failed: panic while consuming events",
					},
				))
				Expect(logger.Messages()).NotTo(ContainElement(
					logging.BufferedLogMessage{
						Message: "projector[projector_test.explosive] | run completed, the live subscription has ended",
					},
				))
			})

			It("logs the failure", func() {
				catchUp.Err = cause

				err := projector.Run(ctx)
				Expect(err).To(HaveOccurred())

				Expect(logger.Messages()).To(ContainElement(
					logging.BufferedLogMessage{
						Message: "projector[fixtures.Balances] | run failed: unable to read event: <error>",
					},
				))
			})
		})
	})

	Describe("func Watermark()", func() {
		It("returns false if no events have been applied", func() {
			_, ok := projector.Watermark()
			Expect(ok).To(BeFalse())
		})

		It("returns the sequence number of the most recently applied event", func() {
			catchUp.Events = NewEvents(3, 7)
			live.Events = NewEvents(5)

			err := projector.Run(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			seq, ok := projector.Watermark()
			Expect(ok).To(BeTrue())
			Expect(seq).To(BeNumerically("==", 7))
		})
	})
})

var _ = Describe("type Projector (with a memory store)", func() {
	var (
		ctx       context.Context
		store     *memorystore.Store[AccountID, Transaction]
		logger    *logging.BufferedLogger
		projector *Projector[Balances, AccountID, Transaction]
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
		DeferCleanup(cancel)

		store = &memorystore.Store[AccountID, Transaction]{}
		logger = &logging.BufferedLogger{}

		projector = Build[Balances](
			NewBuilder(store, store, WithLogger(logger)),
		)
	})

	appendEvents := func(id AccountID, events ...Transaction) {
		_, err := store.Append(ctx, id, eventstore.AnyVersion, events...)
		Expect(err).ShouldNot(HaveOccurred())
	}

	It("applies historical and live events", func() {
		appendEvents("<account-a>", Deposit(100), Withdrawal(30))

		result := make(chan error, 1)
		go func() {
			result <- projector.Run(ctx)
		}()

		appendEvents("<account-b>", Deposit(50))

		watcher := projector.Watch()
		for state := range watcher.Seq(ctx) {
			if len(state.Applied) == 3 {
				Expect(state.Accounts).To(Equal(
					map[AccountID]int64{
						"<account-a>": 70,
						"<account-b>": 50,
					},
				))
				break
			}
		}

		err := store.Close()
		Expect(err).ShouldNot(HaveOccurred())

		Eventually(result).Should(Receive(BeNil()))
		Expect(projector.State()).To(Equal(Completed))
	})

	It("returns a StreamItem error when ctx is canceled", func() {
		ctx, cancel := context.WithCancel(ctx)

		result := make(chan error, 1)
		go func() {
			result <- projector.Run(ctx)
		}()

		Eventually(logger.Messages).Should(ContainElement(
			logging.BufferedLogMessage{
				Message: "projector[fixtures.Balances] | caught up with no historical events, consuming live events",
			},
		))
		cancel()

		var err error
		Eventually(result).Should(Receive(&err))

		var e *Error
		Expect(errors.As(err, &e)).To(BeTrue())
		Expect(e.Kind).To(Equal(StreamItem))
		Expect(err).To(MatchError(context.Canceled))
	})

	It("shows watchers a gapless, ordered history of applied events", func() {
		for i := range 10 {
			appendEvents("<account>", Deposit(int64(i)))
		}

		watcher := projector.Watch()

		state, err := watcher.Next(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(state.Applied).To(BeEmpty())

		result := make(chan error, 1)
		go func() {
			result <- projector.Run(ctx)
		}()

		go func() {
			defer GinkgoRecover()

			for i := range 10 {
				appendEvents("<account>", Deposit(int64(i)))
			}

			err := store.Close()
			Expect(err).ShouldNot(HaveOccurred())
		}()

		previous := []uint64{}
		for len(previous) < 20 {
			state, err := watcher.Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(len(state.Applied)).To(BeNumerically(">", len(previous)))
			Expect(state.Applied[:len(previous)]).To(EqualX(previous))

			for i, seq := range state.Applied {
				Expect(seq).To(BeNumerically("==", i))
			}

			previous = state.Applied
		}

		Eventually(result).Should(Receive(BeNil()))
	})
})

// explosive is a projection that panics when it is applied.
type explosive struct{}

func (explosive) Project(Event) explosive {
	panic("<panic>")
}

func (e explosive) Clone() explosive {
	return e
}
