// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/dberr"
	"github.com/taibuivan/foundersbase/internal/platform/postgres"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
)

// Unique constraints surfaced as conflicts.
const (
	constraintUsername = "account_username_lower_key"
	constraintEmail    = "account_email_key"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	db postgres.DB
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(db postgres.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const selectAccount = `
	SELECT id, username, email, passwordhash, firstname, lastname, role,
	       isenabled, isemailverified, lastloginat, createdat, updatedat
	FROM users.account`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var role string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&role,
		&user.IsEnabled,
		&user.IsEmailVerified,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = sec.UserRole(role)
	return &user, nil
}

func (repository *PostgresUserRepository) findOne(context context.Context, operation string, where string, argument any) (*User, error) {
	user, err := scanUser(repository.db.QueryRow(context, selectAccount+" WHERE "+where, argument))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_user_repo_%s_failed: %w", operation, err)
	}
	return user, nil
}

// FindByID retrieves a user by UUID.
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, "find_by_id", "id = $1", id)
}

// FindByUsername retrieves a user by username, ignoring case.
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	return repository.findOne(context, "find_by_username", "LOWER(username) = LOWER($1)", username)
}

// FindByEmail retrieves a user by canonical email.
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	return repository.findOne(context, "find_by_email", "email = $1", email)
}

// ExistsByUsername reports whether a username is registered, ignoring case.
func (repository *PostgresUserRepository) ExistsByUsername(context context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users.account WHERE LOWER(username) = LOWER($1))`

	var exists bool
	if err := repository.db.QueryRow(context, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_user_repo_exists_by_username_failed: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether an email is registered.
func (repository *PostgresUserRepository) ExistsByEmail(context context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users.account WHERE email = $1)`

	var exists bool
	if err := repository.db.QueryRow(context, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_user_repo_exists_by_email_failed: %w", err)
	}
	return exists, nil
}

/*
Create persists a new user record into the users.account table.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: CONFLICT on duplicate username/email, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, username, email, passwordhash, firstname, lastname, role,
			isenabled, isemailverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := repository.db.Exec(context, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		string(user.Role),
		user.IsEnabled,
		user.IsEmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if conflict := accountConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	return nil
}

// UpdateLastLogin stamps the last successful login.
func (repository *PostgresUserRepository) UpdateLastLogin(context context.Context, id string, at time.Time) error {
	const query = `UPDATE users.account SET lastloginat = $2 WHERE id = $1`
	return repository.exec(context, "update_last_login", query, id, at)
}

// ReplacePassword sets the hash and revokes the user's refresh tokens together.
func (repository *PostgresUserRepository) ReplacePassword(context context.Context, id string, passwordHash string) (int64, error) {
	const query = `UPDATE users.account SET passwordhash = $2, updatedat = NOW() WHERE id = $1`

	var revoked int64
	err := postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(context, query, id, passwordHash)
		if err != nil {
			return fmt.Errorf("postgres_user_repo_replace_password_failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Account")
		}

		revoked, err = revokeAllRefresh(context, tx, id)
		if err != nil {
			return fmt.Errorf("postgres_user_repo_replace_password_revoke_failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

func (repository *PostgresUserRepository) exec(context context.Context, operation, query string, arguments ...any) error {
	tag, err := repository.db.Exec(context, query, arguments...)
	if err != nil {
		if conflict := accountConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("postgres_user_repo_%s_failed: %w", operation, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}
	return nil
}

// accountConflict maps unique violations on users.account to a CONFLICT error.
func accountConflict(err error) error {
	switch {
	case dberr.IsUniqueViolation(err, constraintUsername):
		return apperr.Conflict("Username is already taken").WithCause(err)
	case dberr.IsUniqueViolation(err, constraintEmail):
		return apperr.Conflict("Email is already registered").WithCause(err)
	case dberr.IsUniqueViolation(err, ""):
		return apperr.Conflict("Account already exists").WithCause(err)
	default:
		return nil
	}
}

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements RefreshTokenRepository.
type PostgresRefreshTokenRepository struct {
	db postgres.DB
}

// NewRefreshTokenRepository creates a new PostgreSQL refresh token repository.
func NewRefreshTokenRepository(db postgres.DB) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{db: db}
}

const insertRefreshToken = `
	INSERT INTO users.refreshtoken (
		id, tokenhash, userid, ipaddress, useragent, createdat, expiresat
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`

func insertRefresh(context context.Context, querier postgres.Querier, token *RefreshToken) error {
	_, err := querier.Exec(context, insertRefreshToken,
		token.ID,
		token.TokenHash,
		token.UserID,
		token.IPAddress,
		token.UserAgent,
		token.CreatedAt,
		token.ExpiresAt,
	)
	return err
}

// Create stores a freshly issued refresh token.
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, token *RefreshToken) error {
	if err := insertRefresh(context, repository.db, token); err != nil {
		return fmt.Errorf("postgres_refresh_repo_create_failed: %w", err)
	}
	return nil
}

// FindByHash returns the ledger entry for a token hash.
func (repository *PostgresRefreshTokenRepository) FindByHash(context context.Context, tokenHash string) (*RefreshToken, error) {
	const query = `
		SELECT id, tokenhash, userid, isrevoked, COALESCE(replacedbyhash, ''),
		       ipaddress, useragent, createdat, expiresat
		FROM users.refreshtoken
		WHERE tokenhash = $1`

	var token RefreshToken
	err := repository.db.QueryRow(context, query, tokenHash).Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&token.IsRevoked,
		&token.ReplacedByHash,
		&token.IPAddress,
		&token.UserAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
	)

	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("postgres_refresh_repo_find_failed: %w", err)
	}

	return &token, nil
}

/*
Rotate exchanges the current refresh token for its successor.

Description: Locks the current row, validates ownership, revocation and
expiry, flips the revoked flag with a compare-and-set and inserts the
successor. Either everything commits or nothing does.

Parameters:
  - context: context.Context
  - currentHash: string
  - next: *RefreshToken
  - now: time.Time

Returns:
  - error: Ledger sentinels or wrapped storage failures
*/
func (repository *PostgresRefreshTokenRepository) Rotate(context context.Context, currentHash string, next *RefreshToken, now time.Time) error {
	const lockQuery = `
		SELECT userid, isrevoked, expiresat
		FROM users.refreshtoken
		WHERE tokenhash = $1
		FOR UPDATE`

	const revokeQuery = `
		UPDATE users.refreshtoken
		SET isrevoked = TRUE, replacedbyhash = $2
		WHERE tokenhash = $1 AND isrevoked = FALSE`

	return postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {

		// 1. Lock the presented token
		var ownerID string
		var revoked bool
		var expiresAt time.Time

		err := tx.QueryRow(context, lockQuery, currentHash).Scan(&ownerID, &revoked, &expiresAt)
		if err != nil {
			if dberr.IsNoRows(err) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("postgres_refresh_repo_rotate_lock_failed: %w", err)
		}

		// 2. Validate state
		switch {
		case ownerID != next.UserID:
			return ErrTokenInvalid
		case revoked:
			return ErrTokenRevoked
		case !now.Before(expiresAt):
			return ErrTokenExpired
		}

		// 3. Compare-and-set the revoked flag
		tag, err := tx.Exec(context, revokeQuery, currentHash, next.TokenHash)
		if err != nil {
			return fmt.Errorf("postgres_refresh_repo_rotate_revoke_failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrTokenRevoked
		}

		// 4. Store the successor
		if err := insertRefresh(context, tx, next); err != nil {
			return fmt.Errorf("postgres_refresh_repo_rotate_insert_failed: %w", err)
		}

		return nil
	})
}

// RevokeAll revokes every live refresh token of the user.
func (repository *PostgresRefreshTokenRepository) RevokeAll(context context.Context, userID string) (int64, error) {
	count, err := revokeAllRefresh(context, repository.db, userID)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_repo_revoke_all_failed: %w", err)
	}
	return count, nil
}

func revokeAllRefresh(context context.Context, querier postgres.Querier, userID string) (int64, error) {
	const query = `UPDATE users.refreshtoken SET isrevoked = TRUE WHERE userid = $1 AND isrevoked = FALSE`

	tag, err := querier.Exec(context, query, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired deletes ledger entries that expired before the given time.
func (repository *PostgresRefreshTokenRepository) PurgeExpired(context context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM users.refreshtoken WHERE expiresat < $1`

	tag, err := repository.db.Exec(context, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_repo_purge_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// # Single-Use Token Repository

// PostgresOneTimeTokenRepository implements OneTimeTokenRepository.
type PostgresOneTimeTokenRepository struct {
	db postgres.DB
}

// NewOneTimeTokenRepository creates a new PostgreSQL single-use token repository.
func NewOneTimeTokenRepository(db postgres.DB) *PostgresOneTimeTokenRepository {
	return &PostgresOneTimeTokenRepository{db: db}
}

// Create stores a token, discarding earlier unused tokens of the same user and kind.
func (repository *PostgresOneTimeTokenRepository) Create(context context.Context, token *OneTimeToken) error {
	const discardQuery = `DELETE FROM users.onetimetoken WHERE userid = $1 AND kind = $2 AND usedat IS NULL`

	const insertQuery = `
		INSERT INTO users.onetimetoken (
			id, tokenhash, kind, userid, newemail, createdat, expiresat
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`

	return postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(context, discardQuery, token.UserID, string(token.Kind)); err != nil {
			return fmt.Errorf("postgres_token_repo_discard_failed: %w", err)
		}

		_, err := tx.Exec(context, insertQuery,
			token.ID,
			token.TokenHash,
			string(token.Kind),
			token.UserID,
			token.NewEmail,
			token.CreatedAt,
			token.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("postgres_token_repo_create_failed: %w", err)
		}
		return nil
	})
}

/*
Consume validates a single-use token and applies its effect atomically.

Parameters:
  - context: context.Context
  - kind: TokenKind
  - tokenHash: string
  - now: time.Time
  - effect: TokenEffect

Returns:
  - *OneTimeToken: The consumed token
  - error: Token sentinels, CONFLICT, or wrapped storage failures
*/
func (repository *PostgresOneTimeTokenRepository) Consume(context context.Context, kind TokenKind, tokenHash string, now time.Time, effect TokenEffect) (*OneTimeToken, error) {
	const lockQuery = `
		SELECT id, userid, COALESCE(newemail, ''), createdat, expiresat, usedat
		FROM users.onetimetoken
		WHERE tokenhash = $1 AND kind = $2
		FOR UPDATE`

	const markUsedQuery = `UPDATE users.onetimetoken SET usedat = $2 WHERE id = $1 AND usedat IS NULL`

	token := &OneTimeToken{TokenHash: tokenHash, Kind: kind}

	err := postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {

		// 1. Lock the token row
		err := tx.QueryRow(context, lockQuery, tokenHash, string(kind)).Scan(
			&token.ID,
			&token.UserID,
			&token.NewEmail,
			&token.CreatedAt,
			&token.ExpiresAt,
			&token.UsedAt,
		)
		if err != nil {
			if dberr.IsNoRows(err) {
				return ErrTokenNotFound
			}
			return fmt.Errorf("postgres_token_repo_consume_lock_failed: %w", err)
		}

		if token.UsedAt != nil || !now.Before(token.ExpiresAt) {
			return ErrTokenExpired
		}

		// 2. Apply the effect
		if err := applyTokenEffect(context, tx, token, effect); err != nil {
			return err
		}

		// 3. Mark used
		tag, err := tx.Exec(context, markUsedQuery, token.ID, now)
		if err != nil {
			return fmt.Errorf("postgres_token_repo_consume_mark_failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrTokenExpired
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	token.UsedAt = &now
	return token, nil
}

func applyTokenEffect(context context.Context, tx pgx.Tx, token *OneTimeToken, effect TokenEffect) error {
	switch token.Kind {
	case KindVerifyEmail:
		const query = `UPDATE users.account SET isemailverified = TRUE, updatedat = NOW() WHERE id = $1`
		if _, err := tx.Exec(context, query, token.UserID); err != nil {
			return fmt.Errorf("postgres_token_repo_verify_email_failed: %w", err)
		}

	case KindResetPassword:
		const query = `UPDATE users.account SET passwordhash = $2, updatedat = NOW() WHERE id = $1`
		if _, err := tx.Exec(context, query, token.UserID, effect.PasswordHash); err != nil {
			return fmt.Errorf("postgres_token_repo_reset_password_failed: %w", err)
		}
		if _, err := revokeAllRefresh(context, tx, token.UserID); err != nil {
			return fmt.Errorf("postgres_token_repo_reset_revoke_failed: %w", err)
		}

	case KindChangeEmail:
		const query = `UPDATE users.account SET email = $2, isemailverified = TRUE, updatedat = NOW() WHERE id = $1`
		if _, err := tx.Exec(context, query, token.UserID, token.NewEmail); err != nil {
			if conflict := accountConflict(err); conflict != nil {
				return conflict
			}
			return fmt.Errorf("postgres_token_repo_change_email_failed: %w", err)
		}

	default:
		return fmt.Errorf("postgres_token_repo_unknown_kind: %s", token.Kind)
	}

	return nil
}
