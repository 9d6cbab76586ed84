package sqlstore_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/storetest"
	. "github.com/dogmatiq/projector/eventstore/sqlstore"
	. "github.com/dogmatiq/projector/internal/fixtures"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// tempDSN returns the DSN of an SQLite database in a temporary directory.
func tempDSN() string {
	dir, err := os.MkdirTemp("", "sqlstore-")
	Expect(err).ShouldNot(HaveOccurred())
	DeferCleanup(os.RemoveAll, dir)

	return "file:" + filepath.Join(dir, "events.sqlite") + "?_pragma=busy_timeout(5000)"
}

var _ = Describe("type Store (standard test suite)", func() {
	var store *Store[AccountID, Transaction]

	storetest.Declare(
		func(ctx context.Context) storetest.Out {
			var err error
			store, err = Open[AccountID, Transaction](
				ctx,
				tempDSN(),
				WithLogger(logging.DiscardLogger{}),
				WithPageSize(2),
			)
			Expect(err).ShouldNot(HaveOccurred())

			return storetest.Out{
				Store:      store,
				Subscriber: store,
				Appender:   store,
				Close:      store.Close,
			}
		},
		func() {
			store.Close()
		},
	)
})

var _ = Describe("type Store", func() {
	var (
		ctx context.Context
		db  *sql.DB
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
		DeferCleanup(cancel)

		var err error
		db, err = sql.Open(DriverName, tempDSN())
		Expect(err).ShouldNot(HaveOccurred())
		DeferCleanup(db.Close)

		err = CreateSchema(ctx, db)
		Expect(err).ShouldNot(HaveOccurred())
	})

	Describe("func CreateSchema()", func() {
		It("does not fail if the schema already exists", func() {
			err := CreateSchema(ctx, db)
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	Describe("func DropSchema()", func() {
		It("removes the events table", func() {
			err := DropSchema(ctx, db)
			Expect(err).ShouldNot(HaveOccurred())

			store := New[AccountID, Transaction](db)
			_, err = store.Append(ctx, "<account>", eventstore.AnyVersion, Deposit(1))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("func New()", func() {
		It("does not close the database when the store is closed", func() {
			store := New[AccountID, Transaction](db)

			err := store.Close()
			Expect(err).ShouldNot(HaveOccurred())

			err = db.PingContext(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	Describe("func StreamAll()", func() {
		It("reads every event when there are more events than fit in one page", func() {
			store := New[AccountID, Transaction](
				db,
				WithLogger(logging.DiscardLogger{}),
				WithPageSize(3),
			)

			for i := 0; i < 10; i++ {
				_, err := store.Append(ctx, "<account>", eventstore.AnyVersion, Deposit(int64(i)))
				Expect(err).ShouldNot(HaveOccurred())
			}

			cur, err := store.StreamAll(ctx, eventstore.SelectFrom(1))
			Expect(err).ShouldNot(HaveOccurred())
			defer cur.Close()

			var sequences []uint64
			for {
				ev, ok, err := cur.Next(ctx)
				Expect(err).ShouldNot(HaveOccurred())

				if !ok {
					break
				}

				sequences = append(sequences, ev.Sequence)
			}

			Expect(sequences).To(Equal([]uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}))
		})
	})

	Describe("func Append()", func() {
		It("retains events across instances", func() {
			store := New[AccountID, Transaction](db, WithLogger(logging.DiscardLogger{}))

			_, err := store.Append(ctx, "<account>", eventstore.AnyVersion, Deposit(1), Deposit(2))
			Expect(err).ShouldNot(HaveOccurred())

			store = New[AccountID, Transaction](db, WithLogger(logging.DiscardLogger{}))

			v, err := store.Append(ctx, "<account>", eventstore.ExactVersion(2), Deposit(3))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(v).To(BeNumerically("==", 3))
		})
	})
})
