// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
)

func TestWrap(t *testing.T) {
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "account_email_key"}

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"no rows", fmt.Errorf("find: %w", pgx.ErrNoRows), apperr.CodeNotFound},
		{"unique violation", fmt.Errorf("insert: %w", unique), apperr.CodeConflict},
		{"other", errors.New("connection reset"), apperr.CodeInternal},
		{"already classified", apperr.Forbidden("nope"), apperr.CodeForbidden},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.True(t, apperr.HasCode(Wrap(test.err, "Account"), test.wantCode))
		})
	}

	assert.NoError(t, Wrap(nil, "Account"))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "account_email_key"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "account_email_key"))
	assert.False(t, IsUniqueViolation(err, "account_username_key"))
	assert.False(t, IsUniqueViolation(errors.New("plain"), ""))
}
