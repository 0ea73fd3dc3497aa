// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the statement surface shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is what repositories depend on: statements plus transactions.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

/*
WithTx runs fn inside a transaction and commits when it returns nil.

Any error from fn rolls the transaction back and is returned unchanged, so
callers can still match sentinel errors with [errors.Is].

Parameters:
  - context: context.Context
  - db: DB (pool or mock)
  - fn: Work to perform with the transaction

Returns:
  - error: fn's error, or a wrapped begin/commit failure
*/
func WithTx(context context.Context, db DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_begin_failed: %w", err)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(context); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres_rollback_failed: %w", rollbackErr))
		}
		return err
	}

	if err := tx.Commit(context); err != nil {
		return fmt.Errorf("postgres_commit_failed: %w", err)
	}

	return nil
}
