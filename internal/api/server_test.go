// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/foundersbase/internal/chat"
	"github.com/taibuivan/foundersbase/internal/platform/config"
	"github.com/taibuivan/foundersbase/internal/platform/metrics"
	"github.com/taibuivan/foundersbase/internal/platform/ratelimit"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
	"github.com/taibuivan/foundersbase/internal/users/account"
	"github.com/taibuivan/foundersbase/internal/users/auth"
)

func newTestAPI(t *testing.T, deps HealthDependencies) *httpexpect.Expect {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		ServerPort:  "0",
		Environment: "test",
		PublicURL:   "https://foundersbase.app",
		RateLimit:   config.RateLimitConfig{RequestsPerMinute: 1000},
	}

	tokens, err := sec.NewTokenService("unit-test-secret-unit-test-secret-42", "foundersbase.test", 15*time.Minute)
	require.NoError(t, err)

	// Routing only: no handler below touches storage in these tests.
	ledger := auth.NewLedger(nil, auth.DefaultRefreshTokenTTL)
	authService := auth.NewService(nil, ledger, nil, tokens, ratelimit.New(time.Hour), nil, auth.WithLogger(logger))
	chatService := chat.NewService(nil, nil, nil, chat.WithLogger(logger))

	liveness, readiness := NewHealthHandlers(deps, logger)
	server := NewServer(cfg, logger, tokens, Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   metrics.Handler(),
		Auth:      auth.NewHandler(authService, false),
		Account:   account.NewHandler(account.NewService(nil, nil, logger)),
		Chat:      chat.NewHandler(chatService),
		WebSocket: chat.NewWebSocketHandler(chatService, chat.NewHub(logger), tokens, nil, logger),
	})

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return httpexpect.Default(t, httpServer.URL)
}

func TestServer_Probes(t *testing.T) {
	expect := newTestAPI(t, HealthDependencies{
		CheckDatabase: func(context.Context) error { return nil },
	})

	expect.GET("/health").
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Object().HasValue("status", "ok")

	expect.GET("/ready").
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Object().HasValue("status", "ready")

	expect.GET("/metrics").
		Expect().
		Status(http.StatusOK).
		Body().Contains("foundersbase_http_requests_total")
}

func TestServer_ReadinessDegraded(t *testing.T) {
	expect := newTestAPI(t, HealthDependencies{
		CheckDatabase: func(context.Context) error { return nil },
		CheckBroker:   func(context.Context) error { return errors.New("connection refused") },
	})

	checks := expect.GET("/ready").
		Expect().
		Status(http.StatusServiceUnavailable).
		JSON().Object().Value("data").Object().
		HasValue("status", "degraded").
		Value("checks").Array()

	checks.Length().IsEqual(2)
	checks.Value(1).Object().HasValue("name", "redis").HasValue("ok", false)
}

func TestServer_ProtectedRoutesRequireAuth(t *testing.T) {
	expect := newTestAPI(t, HealthDependencies{})

	for _, path := range []string{"/api/v1/account/me", "/api/v1/chat/conversations", "/api/v1/auth/ws-ticket"} {
		expect.GET(path).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().HasValue("code", "UNAUTHORIZED")
	}

	expect.GET("/api/v1/account/me").
		WithHeader("Authorization", "Bearer not-a-token").
		Expect().
		Status(http.StatusUnauthorized)

	expect.GET("/ws").
		Expect().
		Status(http.StatusUnauthorized)

	expect.GET("/api/v1/unknown").
		Expect().
		Status(http.StatusNotFound)
}

func TestServer_PublicAuthRoutesIgnoreStaleBearer(t *testing.T) {
	expect := newTestAPI(t, HealthDependencies{})

	expect.POST("/api/v1/auth/logout").
		WithHeader("Authorization", "Bearer expired.or.garbage").
		Expect().
		Status(http.StatusNoContent)

	expect.POST("/api/v1/auth/refresh").
		WithHeader("Authorization", "Bearer expired.or.garbage").
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().HasValue("code", "INVALID_TOKEN")

	expect.GET("/api/v1/chat/conversations").
		WithHeader("Authorization", "Bearer expired.or.garbage").
		Expect().
		Status(http.StatusUnauthorized)
}
