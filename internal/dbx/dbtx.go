// Package dbx holds the database/sql plumbing behind the Postgres
// repositories.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX lets a repository run against the pool or inside a transaction.
// *sql.DB and *sql.Tx both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn in one transaction. fn returning nil commits; an error or a
// panic rolls back and the panic continues. A password change relies on
// this so the new key row and the re-encrypted password land together:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    if err := keys.NewPostgresRepository(tx).Save(ctx, rec); err != nil {
//	        return err
//	    }
//	    return users.NewPostgresRepository(tx).UpdatePassword(ctx, email, encrypted)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(ctx, tx)
}
