package bboltx

import "go.etcd.io/bbolt"

// Update executes fn within a read-write transaction.
//
// Panics raised by Must() within fn are recovered and returned as errors, in
// which case the transaction is rolled back.
func Update(db *bbolt.DB, fn func(tx *bbolt.Tx)) error {
	return db.Update(func(tx *bbolt.Tx) (err error) {
		defer Recover(&err)
		fn(tx)
		return nil
	})
}

// View executes fn within a read-only transaction.
//
// Panics raised by Must() within fn are recovered and returned as errors.
func View(db *bbolt.DB, fn func(tx *bbolt.Tx)) error {
	return db.View(func(tx *bbolt.Tx) (err error) {
		defer Recover(&err)
		fn(tx)
		return nil
	})
}
