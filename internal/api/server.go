// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api is the HTTP composition root of the Foundersbase API.

It builds the chi router, installs the middleware chain and mounts the auth,
account and chat handlers next to the probes, /metrics and the websocket
endpoint.

Route map:

  - /health, /ready, /metrics: Unauthenticated infrastructure endpoints.
  - /ws: Realtime chat, authenticated by a one-minute ticket, no request timeout.
  - /api/v1/auth: public flows behind Timeout and AuthenticateOptional.
  - /api/v1/{account,chat}: JSON API behind Timeout and Authenticate.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/foundersbase/internal/chat"
	"github.com/taibuivan/foundersbase/internal/platform/config"
	"github.com/taibuivan/foundersbase/internal/platform/constants"
	"github.com/taibuivan/foundersbase/internal/platform/metrics"
	"github.com/taibuivan/foundersbase/internal/platform/middleware"
	"github.com/taibuivan/foundersbase/internal/users/account"
	"github.com/taibuivan/foundersbase/internal/users/auth"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// Nil Metrics or WebSocket handlers leave their routes unmounted.
type Handlers struct {
	// Liveness is the /health handler. Always 200 if the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Metrics serves the Prometheus registry.
	Metrics http.Handler

	// Auth handles registration, login, token rotation and recovery flows.
	Auth *auth.Handler

	// Account handles self-service profile and session management.
	Account *account.Handler

	// Chat handles direct messaging over REST.
	Chat *chat.Handler

	// WebSocket upgrades ticket-authenticated realtime connections.
	WebSocket http.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(cfg *config.Config, log *slog.Logger, verifier middleware.TokenVerifier, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerMinute))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated probes for container orchestration and scraping.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// # Realtime
	// Long-lived connection: no request timeout, authenticated by ticket.
	if h.WebSocket != nil {
		r.Method(http.MethodGet, constants.WebSocketPath, h.WebSocket)
	}

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(chimw.Timeout(constants.GlobalRequestTimeout))

		// Refresh and logout must work while the access token is stale.
		api.Group(func(public chi.Router) {
			public.Use(middleware.AuthenticateOptional(verifier))
			public.Mount("/auth", h.Auth.Routes())
		})

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.Authenticate(verifier))
			protected.Mount("/account", h.Account.Routes())
			protected.Mount("/chat", h.Chat.Routes())
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// RegisterOnShutdown runs fn when [Server.Shutdown] starts. Hijacked websocket
// connections are not tracked by net/http and must be closed this way.
func (s *Server) RegisterOnShutdown(fn func()) {
	s.httpServer.RegisterOnShutdown(fn)
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
