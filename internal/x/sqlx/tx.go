package sqlx

import (
	"context"
	"database/sql"
)

// Update calls fn within a read-write transaction.
//
// fn may use Must() and the other helpers in this package to abort the
// transaction. The transaction is committed only if fn returns normally.
func Update(
	ctx context.Context,
	db *sql.DB,
	fn func(tx *sql.Tx),
) (err error) {
	defer Recover(&err)

	tx, err := db.BeginTx(ctx, nil)
	Must(err)
	defer tx.Rollback()

	fn(tx)

	return tx.Commit()
}
