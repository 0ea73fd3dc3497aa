// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "errors"

// Ledger and single-use token failures. They never reach clients directly:
// the service maps all of them to one uniform "invalid or expired" response
// and keeps the precise reason for the audit log.
var (
	// ErrTokenInvalid means a refresh token does not match any ledger entry of the caller.
	ErrTokenInvalid = errors.New("auth: token not recognised")

	// ErrTokenNotFound means no single-use token of the requested kind matches.
	ErrTokenNotFound = errors.New("auth: token not found")

	// ErrTokenExpired means the token is past its expiry (or, for single-use tokens, already used).
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenRevoked means a refresh token was already rotated or revoked.
	// Presenting one is treated as a possible replay.
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// tokenFailureReason names a ledger error for logs and metrics.
func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenNotFound):
		return "invalid"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	default:
		return "error"
	}
}
