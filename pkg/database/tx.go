package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxBeginner is satisfied by *sqlx.DB.
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RollbackError is returned by Transact when fn failed and the transaction
// was rolled back. Cause is what fn returned; RollbackErr is set only when
// the rollback itself failed.
type RollbackError struct {
	Cause       error
	RollbackErr error
}

func (e *RollbackError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("tx rolled back: %v (rollback: %v)", e.Cause, e.RollbackErr)
	}
	return fmt.Sprintf("tx rolled back: %v", e.Cause)
}

func (e *RollbackError) Unwrap() error { return e.Cause }

// Transact runs fn inside a single transaction. It commits when fn returns
// nil and rolls back otherwise. A panic in fn rolls back and re-panics.
//
// Callers get one of three outcomes: nil (committed), *RollbackError (fn
// failed, nothing written) or a plain error when begin/commit failed.
func Transact(ctx context.Context, db TxBeginner, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if ferr := fn(tx); ferr != nil {
		rerr := tx.Rollback()
		if errors.Is(rerr, sql.ErrTxDone) {
			rerr = nil
		}
		return &RollbackError{Cause: ferr, RollbackErr: rerr}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
