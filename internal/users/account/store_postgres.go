// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/database/schema"
	"github.com/taibuivan/foundersbase/internal/platform/dberr"
	"github.com/taibuivan/foundersbase/internal/platform/postgres"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
	"github.com/taibuivan/foundersbase/internal/users/auth"
)

const constraintUsername = "account_username_lower_key"

// # Account Repository

// PostgresAccountRepository implements AccountRepository.
type PostgresAccountRepository struct {
	db postgres.DB
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(db postgres.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

// FindByID retrieves an account by primary key.
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*auth.User, error) {
	account := schema.UserAccount
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1`,
		strings.Join(account.Columns(), ", "), account.Table, account.ID,
	)

	var user auth.User
	var role string

	err := repository.db.QueryRow(context, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FirstName, &user.LastName, &role,
		&user.IsEnabled, &user.IsEmailVerified, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_failed: %w", err)
	}

	user.Role = sec.UserRole(role)
	return &user, nil
}

// UpdateNames persists first and last name.
func (repository *PostgresAccountRepository) UpdateNames(context context.Context, id, firstName, lastName string) error {
	account := schema.UserAccount
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = NOW()
		WHERE %s = $1`,
		account.Table,
		account.FirstName, account.LastName, account.UpdatedAt,
		account.ID,
	)

	tag, err := repository.db.Exec(context, query, id, firstName, lastName)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_names_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}
	return nil
}

// UpdateUsername renames an account. A clash with another account is a conflict.
func (repository *PostgresAccountRepository) UpdateUsername(context context.Context, id, username string) error {
	account := schema.UserAccount
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = NOW()
		WHERE %s = $1`,
		account.Table,
		account.Username, account.UpdatedAt,
		account.ID,
	)

	tag, err := repository.db.Exec(context, query, id, username)
	if err != nil {
		if dberr.IsUniqueViolation(err, constraintUsername) {
			return apperr.Conflict("Username is already taken").WithCause(err)
		}
		return fmt.Errorf("postgres_account_repo_update_username_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}
	return nil
}

// # Session Repository

// PostgresSessionRepository implements SessionRepository over the refresh token ledger.
type PostgresSessionRepository struct {
	db    postgres.DB
	clock func() time.Time
}

// NewSessionRepository creates a new PostgreSQL implementation of the SessionRepository.
func NewSessionRepository(db postgres.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db, clock: time.Now}
}

// FindActiveByUserID lists unrevoked, unexpired refresh tokens, newest first.
func (repository *PostgresSessionRepository) FindActiveByUserID(context context.Context, userID string) ([]SessionInfo, error) {
	token := schema.UserRefreshToken
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = FALSE AND %s > $2
		ORDER BY %s DESC`,
		token.ID, token.IPAddress, token.UserAgent, token.CreatedAt, token.ExpiresAt,
		token.Table,
		token.UserID, token.IsRevoked, token.ExpiresAt,
		token.CreatedAt,
	)

	rows, err := repository.db.Query(context, query, userID, repository.clock())
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var session SessionInfo
		if err := rows.Scan(&session.ID, &session.IPAddress, &session.UserAgent, &session.CreatedAt, &session.ExpiresAt); err != nil {
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}
	return sessions, nil
}

// Revoke marks one of the user's refresh tokens revoked.
func (repository *PostgresSessionRepository) Revoke(context context.Context, userID, sessionID string) error {
	token := schema.UserRefreshToken
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = TRUE
		WHERE %s = $1 AND %s = $2 AND %s = FALSE`,
		token.Table,
		token.IsRevoked,
		token.ID, token.UserID, token.IsRevoked,
	)

	tag, err := repository.db.Exec(context, query, sessionID, userID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Session")
	}
	return nil
}
