// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Email and username arguments are expected in canonical form (see pkg/ident).
// Lookups that match nothing return an [apperr.AppError] with code NOT_FOUND.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: NOT_FOUND or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByUsername returns the account with the given username, ignoring case.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: NOT_FOUND or database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	// FindByEmail returns the account registered with email.
	FindByEmail(context context.Context, email string) (*User, error)

	// ExistsByUsername reports whether the username (case-insensitive) is taken.
	ExistsByUsername(context context.Context, username string) (bool, error)

	// ExistsByEmail reports whether the email is taken.
	ExistsByEmail(context context.Context, email string) (bool, error)

	/*
		Create persists a brand-new user account.

		Parameters:
		  - context: context.Context
		  - user: *User (ID and timestamps are filled in by the caller)

		Returns:
		  - error: CONFLICT when the username or email is already registered
	*/
	Create(context context.Context, user *User) error

	// UpdateLastLogin stamps a successful login.
	UpdateLastLogin(context context.Context, id string, at time.Time) error

	// ReplacePassword sets a new password hash and revokes every live refresh
	// token of the user in one transaction. It returns the revoked count.
	ReplacePassword(context context.Context, id string, passwordHash string) (int64, error)
}

// # Refresh Token Data Access

// RefreshTokenRepository persists the refresh token ledger.
type RefreshTokenRepository interface {

	// Create stores a freshly issued token.
	Create(context context.Context, token *RefreshToken) error

	// FindByHash returns the entry for a token hash, or [ErrTokenInvalid].
	FindByHash(context context.Context, tokenHash string) (*RefreshToken, error)

	/*
		Rotate atomically revokes the current token and stores its successor.

		The current row is locked for the duration of the exchange so two
		concurrent rotations of the same token cannot both succeed.

		Parameters:
		  - context: context.Context
		  - currentHash: Hash of the presented token
		  - next: Successor entry (same user)
		  - now: Reference time for the expiry check

		Returns:
		  - error: [ErrTokenInvalid], [ErrTokenExpired], [ErrTokenRevoked] or storage failures
	*/
	Rotate(context context.Context, currentHash string, next *RefreshToken, now time.Time) error

	// RevokeAll revokes every live token of the user and returns how many were revoked.
	RevokeAll(context context.Context, userID string) (int64, error)

	// PurgeExpired deletes entries that expired before the given time.
	PurgeExpired(context context.Context, before time.Time) (int64, error)
}

// # Single-Use Token Data Access

// OneTimeTokenRepository persists verification, reset and email-change tokens.
type OneTimeTokenRepository interface {

	// Create stores a token. Earlier unused tokens of the same user and kind are discarded.
	Create(context context.Context, token *OneTimeToken) error

	/*
		Consume checks a token and applies its effect in one transaction.

		Effects by kind:
		  - verify_email: marks the account verified
		  - reset_password: sets effect.PasswordHash and revokes all refresh tokens
		  - change_email: moves the account to token.NewEmail and marks it verified

		Parameters:
		  - context: context.Context
		  - kind: Expected token kind
		  - tokenHash: Hash of the presented token
		  - now: Reference time for the expiry check
		  - effect: Extra data for the effect

		Returns:
		  - *OneTimeToken: The consumed token
		  - error: [ErrTokenNotFound], [ErrTokenExpired], CONFLICT or storage failures
	*/
	Consume(context context.Context, kind TokenKind, tokenHash string, now time.Time, effect TokenEffect) (*OneTimeToken, error)
}
