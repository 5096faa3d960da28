// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package txutil provides safe transaction-encapsulation functions which have
// retry semantics as necessary.
package txutil

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var mon = monkit.Package()

// DB is the minimal surface needed to begin a transaction.
type DB interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx starts a transaction on the given database, passes a handle to fn,
// and commits when fn returns nil or rolls back when it returns an error.
// Serialization failures restart the transaction, so fn must be idempotent
// outside of its database effects.
func WithTx(ctx context.Context, db DB, txOpts *sql.TxOptions, fn func(context.Context, *sql.Tx) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	start := time.Now()

	for i := 0; ; i++ {
		err, rollbackErr := withTxOnce(ctx, db, txOpts, fn)
		if time.Since(start) < 5*time.Minute && i < 10 {
			if errCode(err) == "40001" {
				mon.Event("transaction_retry")
				continue
			}
		}
		mon.IntVal("transaction_retries").Observe(int64(i))
		return errs.Wrap(errs.Combine(err, rollbackErr))
	}
}

// withTxOnce creates a transaction, ensures that it is eventually released
// (commit or rollback) and passes it to the provided callback. It does not
// handle retries, delegating that to callers.
func withTxOnce(ctx context.Context, db DB, txOpts *sql.TxOptions, fn func(context.Context, *sql.Tx) error) (err, rollbackErr error) {
	defer mon.Task()(&ctx)(&err)

	tx, err := db.BeginTx(ctx, txOpts)
	if err != nil {
		return errs.Wrap(err), nil
	}
	defer func() {
		if err == nil {
			err = tx.Commit()
		} else {
			rollbackErr = tx.Rollback()
		}
	}()

	return fn(ctx, tx), nil
}

// errCode returns the SQLSTATE code associated with any database error in the
// chain of errors walked by unwrapping.
func errCode(err error) (code string) {
	var state interface{ SQLState() string }
	if errors.As(err, &state) {
		code = state.SQLState()
	}
	return code
}
