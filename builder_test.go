package projector_test

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	. "github.com/dogmatiq/projector"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/memorystore"
	. "github.com/dogmatiq/projector/internal/fixtures"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func NewBuilder()", func() {
	It("panics if the store is nil", func() {
		Expect(func() {
			NewBuilder[AccountID, Transaction](nil, &SubscriberStub{})
		}).To(PanicWith("store must not be nil"))
	})

	It("panics if the subscriber is nil", func() {
		Expect(func() {
			NewBuilder[AccountID, Transaction](&StoreStub{}, nil)
		}).To(PanicWith("subscriber must not be nil"))
	})
})

var _ = Describe("func Build()", func() {
	var (
		ctx     context.Context
		store   *memorystore.Store[AccountID, Transaction]
		logger  *logging.BufferedLogger
		builder *Builder[AccountID, Transaction]
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
		DeferCleanup(cancel)

		store = &memorystore.Store[AccountID, Transaction]{}
		logger = &logging.BufferedLogger{}
		builder = NewBuilder(store, store, WithLogger(logger))
	})

	It("returns an idle projector", func() {
		p := Build[Balances](builder)
		Expect(p.State()).To(Equal(Idle))

		_, ok := p.Watermark()
		Expect(ok).To(BeFalse())
	})

	It("returns independent projectors that share the store", func() {
		_, err := store.Append(ctx, "<account>", eventstore.AnyVersion, Deposit(10), Deposit(20))
		Expect(err).ShouldNot(HaveOccurred())

		err = store.Close()
		Expect(err).ShouldNot(HaveOccurred())

		balances := Build[Balances](builder)
		counter := Build[Counter](builder)
		another := Build[Counter](builder)

		err = balances.Run(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		err = counter.Run(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		b, err := balances.Watch().Next(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(b.Accounts).To(Equal(map[AccountID]int64{"<account>": 30}))

		c, err := counter.Watch().Next(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c).To(Equal(Counter{Count: 2, Last: 1}))

		Expect(another.State()).To(Equal(Idle))
	})

	It("prefixes log messages with the projection type", func() {
		err := store.Close()
		Expect(err).ShouldNot(HaveOccurred())

		err = Build[Counter](builder).Run(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "projector[fixtures.Counter] | run completed, the live subscription has ended",
			},
		))
	})

	It("gives options passed to Build() precedence over the builder's options", func() {
		override := &logging.BufferedLogger{}

		err := store.Close()
		Expect(err).ShouldNot(HaveOccurred())

		err = Build[Counter](builder, WithLogger(override)).Run(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(logger.Messages()).To(BeEmpty())
		Expect(override.Messages()).NotTo(BeEmpty())
	})
})
