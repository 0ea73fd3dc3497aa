// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/foundersbase/internal/platform/sec"
	"github.com/taibuivan/foundersbase/pkg/uuid"
)

// DefaultRefreshTokenTTL is the lifetime of a refresh token.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// IssuedToken is an opaque refresh token handed to a client.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Ledger issues, rotates and revokes refresh tokens.
//
// Clients only ever see the opaque token; the ledger stores its hash.
type Ledger struct {
	repository RefreshTokenRepository
	ttl        time.Duration
	clock      func() time.Time
}

// NewLedger creates a ledger over the given repository.
func NewLedger(repository RefreshTokenRepository, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}
	return &Ledger{repository: repository, ttl: ttl, clock: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (ledger *Ledger) TTL() time.Duration {
	return ledger.ttl
}

func (ledger *Ledger) newEntry(userID, ipAddress, userAgent string) (*RefreshToken, string, error) {
	token, err := sec.GenerateSecureToken()
	if err != nil {
		return nil, "", fmt.Errorf("auth_ledger_generate_failed: %w", err)
	}

	now := ledger.clock()
	return &RefreshToken{
		ID:        uuid.New(),
		TokenHash: sec.HashToken(token),
		UserID:    userID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(ledger.ttl),
	}, token, nil
}

/*
Issue creates a new refresh token for the user.

Parameters:
  - context: context.Context
  - userID: Owner of the token
  - ipAddress, userAgent: Client fingerprint kept for auditing

Returns:
  - *IssuedToken: Opaque token and its expiry
  - error: Generation or persistence failures
*/
func (ledger *Ledger) Issue(context context.Context, userID, ipAddress, userAgent string) (*IssuedToken, error) {
	entry, token, err := ledger.newEntry(userID, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	if err := ledger.repository.Create(context, entry); err != nil {
		return nil, fmt.Errorf("auth_ledger_issue_failed: %w", err)
	}

	return &IssuedToken{Token: token, ExpiresAt: entry.ExpiresAt}, nil
}

// Owner returns the user a refresh token was issued to, or [ErrTokenInvalid].
// It does not check revocation or expiry; [Ledger.Rotate] does, so a replayed
// token still reaches the rotation and is reported as revoked.
func (ledger *Ledger) Owner(context context.Context, token string) (string, error) {
	entry, err := ledger.find(context, token)
	if err != nil {
		return "", err
	}
	return entry.UserID, nil
}

// LiveOwner is [Ledger.Owner] restricted to tokens that are neither revoked
// nor expired.
func (ledger *Ledger) LiveOwner(context context.Context, token string) (string, error) {
	entry, err := ledger.find(context, token)
	if err != nil {
		return "", err
	}

	switch {
	case entry.IsRevoked:
		return "", ErrTokenRevoked
	case !ledger.clock().Before(entry.ExpiresAt):
		return "", ErrTokenExpired
	}
	return entry.UserID, nil
}

func (ledger *Ledger) find(context context.Context, token string) (*RefreshToken, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	return ledger.repository.FindByHash(context, sec.HashToken(token))
}

/*
Rotate exchanges a live refresh token for a new one.

The presented token is revoked and linked to its successor. Presenting it
again afterwards fails with [ErrTokenRevoked].

Parameters:
  - context: context.Context
  - token: Presented opaque token
  - userID: Expected owner
  - ipAddress, userAgent: Client fingerprint for the successor

Returns:
  - *IssuedToken: Successor token
  - error: [ErrTokenInvalid], [ErrTokenExpired], [ErrTokenRevoked] or storage failures
*/
func (ledger *Ledger) Rotate(context context.Context, token, userID, ipAddress, userAgent string) (*IssuedToken, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	next, nextToken, err := ledger.newEntry(userID, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	if err := ledger.repository.Rotate(context, sec.HashToken(token), next, next.CreatedAt); err != nil {
		return nil, err
	}

	return &IssuedToken{Token: nextToken, ExpiresAt: next.ExpiresAt}, nil
}

// RevokeAll revokes every live refresh token of the user.
func (ledger *Ledger) RevokeAll(context context.Context, userID string) (int64, error) {
	count, err := ledger.repository.RevokeAll(context, userID)
	if err != nil {
		return 0, fmt.Errorf("auth_ledger_revoke_all_failed: %w", err)
	}
	return count, nil
}

// RunPurge deletes expired ledger entries every interval until the context is cancelled.
func (ledger *Ledger) RunPurge(context context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purged, err := ledger.repository.PurgeExpired(context, ledger.clock())
			if err != nil {
				logger.WarnContext(context, "refresh_token_purge_failed", slog.Any("error", err))
				continue
			}
			if purged > 0 {
				logger.InfoContext(context, "refresh_tokens_purged", slog.Int64("count", purged))
			}
		case <-context.Done():
			return
		}
	}
}
