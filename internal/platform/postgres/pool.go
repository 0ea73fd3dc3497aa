// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package postgres provides the managed PostgreSQL connection pool and the
// narrow [DB] interface every repository is written against.
//
// # Architecture
//
// Repositories never see *pgxpool.Pool directly. They accept [DB], which the
// pool satisfies in production and pgxmock satisfies in tests, and they run
// multi-statement work through [WithTx].
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taibuivan/foundersbase/internal/platform/constants"
)

// Pool sizing for the auth and chat workload: short queries, one transaction per
// refresh rotation or message send.
const (
	maxConns          = 25
	minConns          = 4
	maxConnLifetime   = time.Hour
	maxConnIdleTime   = 10 * time.Minute
	healthCheckPeriod = time.Minute
	connectTimeout    = 5 * time.Second
	pingTimeout       = 2 * time.Second
)

/*
NewPool creates the pool and proves the database is reachable.

Every session is tagged with application_name and bounded by a
statement_timeout equal to the global request timeout.

Parameters:
  - ctx: Deadline for the initial connection
  - dsn: postgres:// URL or libpq DSN
  - logger: Structured logger for pool events

Returns:
  - *pgxpool.Pool: A connected pool
  - error: Invalid DSN or unreachable database
*/
func NewPool(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	runtimeParams := poolConfig.ConnConfig.RuntimeParams
	runtimeParams["application_name"] = constants.AppName
	runtimeParams["statement_timeout"] = strconv.FormatInt(constants.GlobalRequestTimeout.Milliseconds(), 10)
	runtimeParams["timezone"] = "UTC"

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres_pool_connected",
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	)

	return pool, nil
}

// Pinger is satisfied by *pgxpool.Pool and by pgxmock pools.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping verifies that the database answers within pingTimeout.
func Ping(ctx context.Context, pool Pinger) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}
	return nil
}

// # Observability

// StatSource is satisfied by *pgxpool.Pool.
type StatSource interface {
	Stat() *pgxpool.Stat
}

// RegisterPoolMetrics exports acquired, idle and total connection gauges.
func RegisterPoolMetrics(registerer prometheus.Registerer, pool StatSource) error {
	gauges := map[string]func(*pgxpool.Stat) int32{
		"acquired": (*pgxpool.Stat).AcquiredConns,
		"idle":     (*pgxpool.Stat).IdleConns,
		"total":    (*pgxpool.Stat).TotalConns,
	}

	for state, read := range gauges {
		collector := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "foundersbase",
			Name:        "db_pool_connections",
			Help:        "PostgreSQL pool connections by state",
			ConstLabels: prometheus.Labels{"state": state},
		}, func() float64 {
			return float64(read(pool.Stat()))
		})

		if err := registerer.Register(collector); err != nil {
			return fmt.Errorf("postgres: register pool metrics: %w", err)
		}
	}
	return nil
}
