package sqlstore

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/projector/internal/x/sqlx"
)

// CreateSchema creates the schema elements required by the store, if they do
// not already exist.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	return sqlx.Update(ctx, db, func(tx *sql.Tx) {
		sqlx.Exec(
			ctx,
			tx,
			`CREATE TABLE IF NOT EXISTS events (
				sequence  INTEGER NOT NULL PRIMARY KEY,
				source_id BLOB NOT NULL,
				version   INTEGER NOT NULL,
				data      BLOB NOT NULL,

				UNIQUE (source_id, version)
			)`,
		)
	})
}

// DropSchema drops the schema elements required by the store.
func DropSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	sqlx.Exec(ctx, db, `DROP TABLE IF EXISTS events`)

	return nil
}
