// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"strings"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/ctxutil"
	"github.com/taibuivan/foundersbase/internal/platform/respond"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify tokens in middleware.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AuthClaims, error)
}

// Authenticate extracts and verifies the JWT from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, request proceeds as anonymous.
//  3. If present, parse and verify the JWT via [TokenVerifier].
//  4. Reject websocket tickets; they only open /ws.
//  5. Inject [*sec.AuthClaims] into the request context for downstream use.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims, err := bearerClaims(request, verifier)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}
			next.ServeHTTP(writer, withClaims(request, claims))
		})
	}
}

// AuthenticateOptional is [Authenticate] for public routes: a header that
// does not verify leaves the request anonymous instead of failing it.
//
// Clients refreshing or logging out usually still send the expired access token.
func AuthenticateOptional(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims, err := bearerClaims(request, verifier)
			if err != nil {
				ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "bearer_ignored_on_public_route")
				claims = nil
			}
			next.ServeHTTP(writer, withClaims(request, claims))
		})
	}
}

// bearerClaims returns nil claims for an absent header.
func bearerClaims(request *http.Request, verifier TokenVerifier) (*sec.AuthClaims, error) {
	authHeader := request.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return nil, apperr.Unauthorized("Invalid authorization format")
	}

	claims, err := verifier.VerifyToken(strings.TrimSpace(token))
	if err != nil || claims.IsTicket() {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	return claims, nil
}

func withClaims(request *http.Request, claims *sec.AuthClaims) *http.Request {
	if claims == nil {
		return request
	}
	return request.WithContext(ctxutil.WithAuthUser(request.Context(), claims))
}

// RequireAuth blocks requests that are not authenticated.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthUser(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}
