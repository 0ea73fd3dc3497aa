// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Foundersbase HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables (and .env in development).
//  3. Connect to PostgreSQL (pgxpool) and run migrations.
//  4. Connect to Redis when realtime fan-out is configured.
//  5. Build the notification transport.
//  6. Wire repositories, services and HTTP handlers.
//  7. Start background workers and the HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/foundersbase/internal/api"
	"github.com/taibuivan/foundersbase/internal/chat"
	"github.com/taibuivan/foundersbase/internal/platform/config"
	"github.com/taibuivan/foundersbase/internal/platform/constants"
	"github.com/taibuivan/foundersbase/internal/platform/mail"
	"github.com/taibuivan/foundersbase/internal/platform/metrics"
	"github.com/taibuivan/foundersbase/internal/platform/migration"
	pgstore "github.com/taibuivan/foundersbase/internal/platform/postgres"
	"github.com/taibuivan/foundersbase/internal/platform/ratelimit"
	redisstore "github.com/taibuivan/foundersbase/internal/platform/redis"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
	"github.com/taibuivan/foundersbase/internal/users/account"
	"github.com/taibuivan/foundersbase/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	must(log, config.LoadDotEnv(), "load .env")

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("mail_driver", cfg.Mail.Driver),
		slog.Bool("redis_fanout", cfg.RedisURL != ""),
	)

	// Root context for background workers. Cancelled on shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Startup deadline so misconfiguration is caught quickly.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")
	must(log, pgstore.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool), "register pool metrics")

	// ── 4. Redis (optional) ───────────────────────────────────────────────
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
	}

	// ── 5. Notifications ──────────────────────────────────────────────────
	sender, closeSender, err := mail.NewSender(cfg.Mail, log)
	must(log, err, "initialize mail sender")
	defer closeSender()

	mailer := mail.NewMailer(sender, cfg.Mail.FromName, cfg.PublicURL)

	// ── 6. Security Primitives ────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.Auth.JWTSecret, constants.AuthIssuer, cfg.Auth.AccessTokenTTL)
	must(log, err, "initialize token service")

	limiter := ratelimit.New(cfg.RateLimit.IdleTTL,
		ratelimit.WithRejectionCounter(metrics.RateLimitedTotal),
	)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	userRepository := auth.NewUserRepository(pool)
	ledger := auth.NewLedger(auth.NewRefreshTokenRepository(pool), cfg.Auth.RefreshTokenTTL)

	authService := auth.NewService(
		userRepository,
		ledger,
		auth.NewOneTimeTokenRepository(pool),
		tokens,
		limiter,
		mailer,
		auth.WithEmailVerification(cfg.Auth.RequireEmailVerification),
		auth.WithLogger(log),
	)

	accountService := account.NewService(
		account.NewAccountRepository(pool),
		account.NewSessionRepository(pool),
		log,
	)

	hub := chat.NewHub(log)

	var pusher chat.Pusher = hub
	if rdb != nil {
		broker := chat.NewRedisBroker(rdb, hub, log)
		pusher = broker

		go func() {
			if err := broker.Run(rootCtx); err != nil {
				log.Error("chat_broker_stopped", slog.Any("error", err))
			}
		}()
	}

	chatService := chat.NewService(
		chat.NewRepository(pool),
		userRepository,
		pusher,
		chat.WithLogger(log),
	)

	// ── 8. Background Workers ─────────────────────────────────────────────
	go limiter.Run(rootCtx, constants.RateLimitCleanupInterval)
	go ledger.RunPurge(rootCtx, constants.RefreshPurgeInterval, log)

	// ── 9. Health handlers (wired with real dependency checkers) ──────────
	dependencies := api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
	}
	if rdb != nil {
		dependencies.CheckBroker = func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		}
	}
	liveness, readiness := api.NewHealthHandlers(dependencies, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   metrics.Handler(),
		Auth:      auth.NewHandler(authService, cfg.IsProduction()),
		Account:   account.NewHandler(accountService),
		Chat:      chat.NewHandler(chatService),
		WebSocket: chat.NewWebSocketHandler(chatService, hub, tokens, originChecker(cfg), log),
	}

	server := api.NewServer(cfg, log, tokens, handlers)
	server.RegisterOnShutdown(hub.Close)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Stop workers and the broker subscription before draining requests.
	rootCancel()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// newLogger builds the JSON logger tagged with the application name.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// originChecker accepts websocket upgrades from the CORS allow-list.
// Development accepts any origin.
func originChecker(cfg *config.Config) func(*http.Request) bool {
	allowed := cfg.AllowedOrigins()

	return func(request *http.Request) bool {
		origin := request.Header.Get(constants.HeaderOrigin)
		if origin == "" || cfg.IsDevelopment() {
			return true
		}
		return slices.Contains(allowed, strings.TrimRight(origin, "/"))
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
