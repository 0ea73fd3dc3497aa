// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil stores and reads the per-request values set by the middleware chain.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/foundersbase/internal/platform/ctxkey"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
)

// lookup returns the value stored under key, or the zero T.
func lookup[T any](ctx context.Context, key any) (T, bool) {
	value, ok := ctx.Value(key).(T)
	return value, ok
}

// # Request Tracing

// WithRequestID attaches the X-Request-ID correlation value.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID returns the correlation value, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := lookup[string](ctx, ctxkey.KeyRequestID)
	return id
}

// WithClientIP attaches the resolved client address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyClientIP, ip)
}

// GetClientIP returns the client address, or "unknown" when none was resolved.
func GetClientIP(ctx context.Context) string {
	if ip, _ := lookup[string](ctx, ctxkey.KeyClientIP); ip != "" {
		return ip
	}
	return "unknown"
}

// # Structured Logging

// WithLogger attaches the request-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger returns the request-scoped logger, or [slog.Default].
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := lookup[*slog.Logger](ctx, ctxkey.KeyLogger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// # Identity & Access

// WithAuthUser attaches the verified claims.
//
// When a request logger is present it is re-scoped with the user id so every
// later log line of the request names the caller.
func WithAuthUser(ctx context.Context, user *sec.AuthClaims) context.Context {
	ctx = context.WithValue(ctx, ctxkey.KeyUser, user)

	if logger, ok := lookup[*slog.Logger](ctx, ctxkey.KeyLogger); ok && logger != nil && user != nil {
		ctx = WithLogger(ctx, logger.With(slog.String("user_id", user.UserID)))
	}
	return ctx
}

// GetAuthUser returns the verified claims, or nil for anonymous requests.
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	claims, _ := lookup[*sec.AuthClaims](ctx, ctxkey.KeyUser)
	return claims
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	if claims := GetAuthUser(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}
