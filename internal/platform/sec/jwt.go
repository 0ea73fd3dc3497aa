// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing, random
// tokens) from the domain logic. Services depend on it through small interfaces
// such as auth.TokenProvider.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every token that fails verification.
//
// The concrete reason (bad signature, expired, malformed) is wrapped for logs,
// but callers only ever branch on this sentinel.
var ErrInvalidToken = errors.New("sec: invalid token")

// PurposeWebSocket marks short-lived tickets that may only open a websocket.
const PurposeWebSocket = "ws"

// TicketTTL bounds the lifetime of a websocket ticket.
const TicketTTL = 60 * time.Second

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// The subject is the username. UserID, Email and Role travel with it so that
// [middleware.Authenticate] can rebuild the caller without a database hit.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID  string   `json:"uid"`
	Email   string   `json:"eml"`
	Role    UserRole `json:"rol"`
	Purpose string   `json:"pur,omitempty"`
}

// Username returns the subject of the token.
func (claims *AuthClaims) Username() string {
	return claims.Subject
}

// IsTicket reports whether the token is a websocket ticket rather than an access token.
func (claims *AuthClaims) IsTicket() bool {
	return claims.Purpose == PurposeWebSocket
}

// Identity is the minimal view of an account needed to mint a token.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Role     UserRole
}

// TokenService handles generation and verification of JWT tokens using HS256.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

// NewTokenService creates a new TokenService signing with the shared secret.
func NewTokenService(secret, issuer string, accessTTL time.Duration) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, errors.New("sec: signing secret must be at least 32 bytes")
	}

	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    accessTTL,
		clock:  time.Now,
	}, nil
}

// AccessTTL returns the lifetime of issued access tokens.
func (service *TokenService) AccessTTL() time.Duration {
	return service.ttl
}

// GenerateAccessToken creates a new JWT access token for an identity.
func (service *TokenService) GenerateAccessToken(identity Identity) (string, error) {
	return service.issue(identity, "", service.ttl)
}

// GenerateTicket creates a websocket ticket for an identity.
func (service *TokenService) GenerateTicket(identity Identity) (string, error) {
	return service.issue(identity, PurposeWebSocket, TicketTTL)
}

func (service *TokenService) issue(identity Identity, purpose string, timeToLive time.Duration) (string, error) {
	currentTime := service.clock()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Username,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:  identity.UserID,
		Email:   identity.Email,
		Role:    identity.Role,
		Purpose: purpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature and validity of a JWT string.
//
// A token is rejected at or after its expiry instant. Every failure matches
// [ErrInvalidToken] under [errors.Is].
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		return service.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.clock),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}

	// jwt treats exp as inclusive; the boundary instant itself is already expired.
	if !service.clock().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}

	return claims, nil
}
