// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements identity and session management for Foundersbase.

It owns the account entity, the refresh token ledger, single-use tokens
(email verification, password reset, email change) and the orchestrator that
ties them together behind the /api/v1/auth endpoints.

# Architecture

  - Entities: User, RefreshToken, OneTimeToken (this file).
  - Contracts: UserRepository, RefreshTokenRepository, OneTimeTokenRepository.
  - Ledger: issue / rotate / revoke-all over refresh tokens.
  - Service: register, login, refresh, logout and the token flows.
*/
package auth

import (
	"time"

	"github.com/taibuivan/foundersbase/internal/platform/sec"
)

// # Domain Entities

// User represents a registered member of the Foundersbase platform.
type User struct {
	ID              string       `json:"id"`
	Username        string       `json:"username"`
	Email           string       `json:"email"`
	PasswordHash    string       `json:"-"` // Explicitly omitted from JSON for security.
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Role            sec.UserRole `json:"role"`
	IsEnabled       bool         `json:"is_enabled"`
	IsEmailVerified bool         `json:"is_email_verified"`
	LastLoginAt     *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// DisplayName joins first and last name, falling back to the username.
func (user *User) DisplayName() string {
	switch {
	case user.FirstName != "" && user.LastName != "":
		return user.FirstName + " " + user.LastName
	case user.FirstName != "":
		return user.FirstName
	case user.LastName != "":
		return user.LastName
	default:
		return user.Username
	}
}

// Identity projects the user onto the claims carried by access tokens.
func (user *User) Identity() sec.Identity {
	return sec.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}

// RefreshToken is one entry of the refresh token ledger.
//
// Only the SHA-256 of the opaque token is stored. ReplacedByHash links a
// rotated token to its successor so a replay can be traced along the chain.
type RefreshToken struct {
	ID             string    `json:"id"`
	TokenHash      string    `json:"-"`
	UserID         string    `json:"user_id"`
	IsRevoked      bool      `json:"is_revoked"`
	ReplacedByHash string    `json:"-"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// TokenKind distinguishes the single-use token flows.
type TokenKind string

const (
	KindVerifyEmail   TokenKind = "verify_email"
	KindResetPassword TokenKind = "reset_password"
	KindChangeEmail   TokenKind = "change_email"
)

// OneTimeToken is a single-use, expiring token mailed to the user.
type OneTimeToken struct {
	ID        string
	TokenHash string
	Kind      TokenKind
	UserID    string
	NewEmail  string // Only set for KindChangeEmail.
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// TokenEffect carries the data a confirmation applies besides marking the token used.
type TokenEffect struct {
	// PasswordHash is the new bcrypt hash for KindResetPassword.
	PasswordHash string
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldNewEmail        = "new_email"
	FieldPassword        = "password"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldLogin           = "login"
	FieldToken           = "token"
	FieldRefreshToken    = "refresh_token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldTicket          = "ticket"
	FieldUser            = "user"
	FieldMessage         = "message"
)
