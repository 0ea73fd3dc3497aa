// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
)

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique-constraint failure (SQLSTATE 23505).
// When constraint is non-empty the violated constraint name must match too.
func IsUniqueViolation(err error, constraint string) bool {
	var pgError *pgconn.PgError
	if !errors.As(err, &pgError) || pgError.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgError.ConstraintName == constraint
}

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// Parameters:
//   - err: The raw error from pgx
//   - resource: Human name used in NOT_FOUND / CONFLICT messages (e.g. "Account")
func Wrap(err error, resource string) error {
	if err == nil {
		return nil
	}

	// Already classified further down.
	if apperr.IsAppError(err) {
		return err
	}

	// 1. Not Found mapping
	if IsNoRows(err) {
		return apperr.NotFound(resource)
	}

	// 2. Unique violations become conflicts
	if IsUniqueViolation(err, "") {
		return apperr.Conflict(resource + " already exists").WithCause(err)
	}

	// 3. Everything else is a server-side failure
	return apperr.Internal(err)
}
