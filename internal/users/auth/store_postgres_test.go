// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
)

var accountColumns = []string{
	"id", "username", "email", "passwordhash", "firstname", "lastname", "role",
	"isenabled", "isemailverified", "lastloginat", "createdat", "updatedat",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

// # Users

func TestUserRepository_FindByUsername(t *testing.T) {
	mock := newMock(t)
	repository := NewUserRepository(mock)
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM users.account\s+WHERE LOWER\(username\) = LOWER\(\$1\)`).
		WithArgs("Alice").
		WillReturnRows(pgxmock.NewRows(accountColumns).AddRow(
			"u-1", "alice", "alice@x.com", "hash", "Alice", "Liddell", "user",
			true, false, (*time.Time)(nil), created, created,
		))

	user, err := repository.FindByUsername(context.Background(), "Alice")
	require.NoError(t, err)

	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, sec.RoleUser, user.Role)
	assert.True(t, user.IsEnabled)
	assert.Nil(t, user.LastLoginAt)
	assert.Equal(t, "Alice Liddell", user.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmail_NotFound(t *testing.T) {
	mock := newMock(t)
	repository := NewUserRepository(mock)

	mock.ExpectQuery(`WHERE email = \$1`).WithArgs("ghost@x.com").WillReturnError(pgx.ErrNoRows)

	_, err := repository.FindByEmail(context.Background(), "ghost@x.com")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestUserRepository_Create_MapsUniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		message    string
	}{
		{constraintEmail, "Email is already registered"},
		{constraintUsername, "Username is already taken"},
	}

	for _, test := range tests {
		t.Run(test.constraint, func(t *testing.T) {
			mock := newMock(t)
			repository := NewUserRepository(mock)

			created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
			user := &User{
				ID: "u-1", Username: "alice", Email: "alice@x.com", PasswordHash: "hash",
				FirstName: "Alice", Role: sec.RoleUser, IsEnabled: true, CreatedAt: created, UpdatedAt: created,
			}

			mock.ExpectExec(`INSERT INTO users.account`).
				WithArgs("u-1", "alice", "alice@x.com", "hash", "Alice", "", string(sec.RoleUser), true, false, created, created).
				WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: test.constraint})

			err := repository.Create(context.Background(), user)

			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, apperr.CodeConflict, appError.Code)
			assert.Equal(t, test.message, appError.Message)
		})
	}
}

func TestUserRepository_ExistsByUsername(t *testing.T) {
	mock := newMock(t)
	repository := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("bob").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repository.ExistsByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepository_ReplacePassword(t *testing.T) {
	t.Run("updates and revokes together", func(t *testing.T) {
		mock := newMock(t)
		repository := NewUserRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users.account SET passwordhash = \$2`).WithArgs("u-1", "new-hash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`UPDATE users.refreshtoken SET isrevoked = TRUE`).WithArgs("u-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 3))
		mock.ExpectCommit()

		revoked, err := repository.ReplacePassword(context.Background(), "u-1", "new-hash")
		require.NoError(t, err)
		assert.EqualValues(t, 3, revoked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("revoke failure rolls the password back", func(t *testing.T) {
		mock := newMock(t)
		repository := NewUserRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users.account SET passwordhash = \$2`).WithArgs("u-1", "new-hash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`UPDATE users.refreshtoken SET isrevoked = TRUE`).WithArgs("u-1").
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := repository.ReplacePassword(context.Background(), "u-1", "new-hash")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		mock := newMock(t)
		repository := NewUserRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users.account SET passwordhash = \$2`).WithArgs("u-9", "new-hash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		_, err := repository.ReplacePassword(context.Background(), "u-9", "new-hash")
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// # Refresh tokens

func TestRefreshRepository_Rotate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next := &RefreshToken{
		ID: "r-2", TokenHash: "hash-2", UserID: "u-1", IPAddress: "10.0.0.1", UserAgent: "curl/8",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}

	t.Run("success", func(t *testing.T) {
		mock := newMock(t)
		repository := NewRefreshTokenRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("hash-1").
			WillReturnRows(pgxmock.NewRows([]string{"userid", "isrevoked", "expiresat"}).AddRow("u-1", false, now.Add(time.Hour)))
		mock.ExpectExec(`SET isrevoked = TRUE, replacedbyhash = \$2`).WithArgs("hash-1", "hash-2").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO users.refreshtoken`).
			WithArgs("r-2", "hash-2", "u-1", "10.0.0.1", "curl/8", now, now.Add(time.Hour)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		require.NoError(t, repository.Rotate(context.Background(), "hash-1", next, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already revoked", func(t *testing.T) {
		mock := newMock(t)
		repository := NewRefreshTokenRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("hash-1").
			WillReturnRows(pgxmock.NewRows([]string{"userid", "isrevoked", "expiresat"}).AddRow("u-1", true, now.Add(time.Hour)))
		mock.ExpectRollback()

		assert.ErrorIs(t, repository.Rotate(context.Background(), "hash-1", next, now), ErrTokenRevoked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost compare-and-set", func(t *testing.T) {
		mock := newMock(t)
		repository := NewRefreshTokenRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("hash-1").
			WillReturnRows(pgxmock.NewRows([]string{"userid", "isrevoked", "expiresat"}).AddRow("u-1", false, now.Add(time.Hour)))
		mock.ExpectExec(`SET isrevoked = TRUE`).WithArgs("hash-1", "hash-2").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		assert.ErrorIs(t, repository.Rotate(context.Background(), "hash-1", next, now), ErrTokenRevoked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired", func(t *testing.T) {
		mock := newMock(t)
		repository := NewRefreshTokenRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("hash-1").
			WillReturnRows(pgxmock.NewRows([]string{"userid", "isrevoked", "expiresat"}).AddRow("u-1", false, now))
		mock.ExpectRollback()

		assert.ErrorIs(t, repository.Rotate(context.Background(), "hash-1", next, now), ErrTokenExpired)
	})

	t.Run("unknown or foreign", func(t *testing.T) {
		mock := newMock(t)
		repository := NewRefreshTokenRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("hash-1").
			WillReturnRows(pgxmock.NewRows([]string{"userid", "isrevoked", "expiresat"}).AddRow("u-2", false, now.Add(time.Hour)))
		mock.ExpectRollback()

		assert.ErrorIs(t, repository.Rotate(context.Background(), "hash-1", next, now), ErrTokenInvalid)
	})
}

func TestRefreshRepository_RevokeAll(t *testing.T) {
	mock := newMock(t)
	repository := NewRefreshTokenRepository(mock)

	mock.ExpectExec(`WHERE userid = \$1 AND isrevoked = FALSE`).WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	count, err := repository.RevokeAll(context.Background(), "u-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestRefreshRepository_FindByHash_Unknown(t *testing.T) {
	mock := newMock(t)
	repository := NewRefreshTokenRepository(mock)

	mock.ExpectQuery(`FROM users.refreshtoken`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := repository.FindByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

// # Single-use tokens

var oneTimeColumns = []string{"id", "userid", "newemail", "createdat", "expiresat", "usedat"}

func TestOneTimeRepository_ConsumeReset(t *testing.T) {
	mock := newMock(t)
	repository := NewOneTimeTokenRepository(mock)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users.onetimetoken`).WithArgs("hash", string(KindResetPassword)).
		WillReturnRows(pgxmock.NewRows(oneTimeColumns).AddRow("t-1", "u-1", "", now.Add(-time.Hour), now.Add(time.Hour), (*time.Time)(nil)))
	mock.ExpectExec(`SET passwordhash = \$2`).WithArgs("u-1", "new-hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users.refreshtoken SET isrevoked = TRUE`).WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`SET usedat = \$2`).WithArgs("t-1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	token, err := repository.Consume(context.Background(), KindResetPassword, "hash", now, TokenEffect{PasswordHash: "new-hash"})
	require.NoError(t, err)

	assert.Equal(t, "u-1", token.UserID)
	require.NotNil(t, token.UsedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOneTimeRepository_ConsumeUsed(t *testing.T) {
	mock := newMock(t)
	repository := NewOneTimeTokenRepository(mock)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	usedAt := now.Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users.onetimetoken`).WithArgs("hash", string(KindVerifyEmail)).
		WillReturnRows(pgxmock.NewRows(oneTimeColumns).AddRow("t-1", "u-1", "", now.Add(-time.Hour), now.Add(time.Hour), &usedAt))
	mock.ExpectRollback()

	_, err := repository.Consume(context.Background(), KindVerifyEmail, "hash", now, TokenEffect{})
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOneTimeRepository_ConsumeNotFound(t *testing.T) {
	mock := newMock(t)
	repository := NewOneTimeTokenRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users.onetimetoken`).WithArgs("hash", string(KindVerifyEmail)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repository.Consume(context.Background(), KindVerifyEmail, "hash", time.Now(), TokenEffect{})
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOneTimeRepository_ConsumeChangeEmailConflict(t *testing.T) {
	mock := newMock(t)
	repository := NewOneTimeTokenRepository(mock)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users.onetimetoken`).WithArgs("hash", string(KindChangeEmail)).
		WillReturnRows(pgxmock.NewRows(oneTimeColumns).AddRow("t-1", "u-1", "taken@x.com", now, now.Add(time.Hour), (*time.Time)(nil)))
	mock.ExpectExec(`SET email = \$2`).WithArgs("u-1", "taken@x.com").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintEmail})
	mock.ExpectRollback()

	_, err := repository.Consume(context.Background(), KindChangeEmail, "hash", now, TokenEffect{})
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOneTimeRepository_CreateDiscardsPending(t *testing.T) {
	mock := newMock(t)
	repository := NewOneTimeTokenRepository(mock)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM users.onetimetoken`).WithArgs("u-1", string(KindVerifyEmail)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO users.onetimetoken`).
		WithArgs("t-2", "hash", string(KindVerifyEmail), "u-1", "", now, now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repository.Create(context.Background(), &OneTimeToken{
		ID: "t-2", TokenHash: "hash", Kind: KindVerifyEmail, UserID: "u-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
