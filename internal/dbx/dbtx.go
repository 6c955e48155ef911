// Package dbx holds the minimal database seam shared by repositories.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the repositories. Both
// *sql.DB and *sql.Tx satisfy it; tests substitute sqlmock connections.
//
// The registry deliberately carries no transaction helper: recipe and
// binary upserts are plain read-modify-write sequences over single keys,
// and the later writer wins.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
