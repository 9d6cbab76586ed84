package sqlx

import (
	"context"
	"database/sql"
)

// Exec executes a statement that returns no rows.
func Exec(
	ctx context.Context,
	db DB,
	query string,
	args ...any,
) {
	_, err := db.ExecContext(ctx, query, args...)
	Must(err)
}

// Query executes a query that returns rows. The caller must close the rows.
func Query(
	ctx context.Context,
	db DB,
	query string,
	args ...any,
) *sql.Rows {
	rows, err := db.QueryContext(ctx, query, args...)
	Must(err)
	return rows
}

// QueryScalar executes a query that returns exactly one row with a single
// column, and returns the value of that column.
func QueryScalar[V any](
	ctx context.Context,
	db DB,
	query string,
	args ...any,
) (v V) {
	Must(
		db.QueryRowContext(ctx, query, args...).Scan(&v),
	)
	return v
}
