// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles self-service profile management.

It lets a signed-in member read their private profile, edit their names,
pick a new username and review or revoke the devices holding a refresh token.

# Architecture

  - Entities: SessionInfo (DTO over the refresh token ledger).
  - Domain: This package depends on the auth package for the User entity.
  - Security: Provides session transparency and revocation mechanisms.
*/
package account

import (
	"context"
	"time"

	"github.com/taibuivan/foundersbase/internal/users/auth"
)

// # Domain Entities

// SessionInfo provides a safety-mapped view of a live refresh token.
// It omits token hashes for transport.
type SessionInfo struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// # Field Identifiers

const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldUsername  = "username"
)

// # Repository Contracts

// AccountRepository defines the persistence contract for profile edits.
type AccountRepository interface {
	/*
		FindByID retrieves a user record by their unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	// UpdateNames replaces first and last name.
	UpdateNames(context context.Context, id, firstName, lastName string) error

	/*
		UpdateUsername renames the account.

		Parameters:
		  - context: context.Context
		  - id: string
		  - username: string (Display form)

		Returns:
		  - error: apperr.Conflict when another account holds the name (case-insensitive)
	*/
	UpdateUsername(context context.Context, id, username string) error
}

// SessionRepository defines the visibility and revocation contract for refresh tokens.
type SessionRepository interface {
	/*
		FindActiveByUserID lists all valid, non-expired refresh tokens for a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []SessionInfo: List of active devices
		  - error: Retrieval errors
	*/
	FindActiveByUserID(context context.Context, userID string) ([]SessionInfo, error)

	// Revoke revokes one refresh token owned by userID. apperr.NotFound if none matched.
	Revoke(context context.Context, userID, sessionID string) error
}
