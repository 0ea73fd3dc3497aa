// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants holds the values shared across layers of the API.

Categories:

  - Server Timing: HTTP server and request deadlines.
  - Background Work: Sweep and purge intervals.
  - Authentication: Token issuer and refresh cookie scope.
  - Realtime: Websocket path and Redis channel naming.

Per-domain policy (token TTLs, rate limits, message length) lives with its
domain package instead.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "foundersbase-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Background Work

const (
	// RateLimitCleanupInterval is how often idle limiter buckets are swept.
	RateLimitCleanupInterval = 1 * time.Minute

	// RefreshPurgeInterval is how often expired refresh tokens are deleted.
	RefreshPurgeInterval = 6 * time.Hour
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "foundersbase.app"

	// RefreshTokenCookieName is the name of the cookie that stores the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath is the scoped path for the refresh token cookie.
	RefreshTokenCookiePath = "/api/v1/auth"
)

// # Realtime

const (
	// WebSocketPath is the upgrade endpoint for realtime chat.
	WebSocketPath = "/ws"

	// RedisChannelUserPrefix prefixes the per-user pub/sub channel.
	RedisChannelUserPrefix = "chat:user:"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderRetryAfter    = "Retry-After"
)

// # Probe Fields

const (
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)
