// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the versioned SQL schema with golang-migrate.
//
// # Sources
//
// The schema ships inside the binary (see data/migrations). MIGRATION_PATH
// overrides it with a directory on disk, which is handy while writing a new
// migration. Migrations run once at startup, before the HTTP listener opens, so
// the users and chat schemas always match the code that serves traffic.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/taibuivan/foundersbase/data/migrations"
)

/*
RunUp applies every pending UP migration.

Parameters:
  - dsn: postgres:// URL or libpq DSN of the target database
  - migrationsPath: Directory to read instead of the embedded schema; "" uses the embedded one
  - logger: Structured logger for migration events

Returns:
  - error: A dirty database or any failed step
*/
func RunUp(dsn string, migrationsPath string, logger *slog.Logger) error {
	migrator, err := newMigrator(convertToPgx5DSN(dsn), migrationsPath)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if err := errors.Join(sourceError, dbError); err != nil {
			logger.Error("migration_close_failed", slog.Any("error", err))
		}
	}()

	migrator.Log = &migrateLogger{logger: logger}

	// 1. Refuse to touch a half-applied schema
	fromVersion, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to read version: %w", err)
	}
	if isDirty {
		return fmt.Errorf("migration: database is dirty at version %d, fix it by hand and force the version", fromVersion)
	}

	// 2. Apply
	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("migration_up_to_date", slog.Uint64("version", uint64(fromVersion)))
		return nil
	case err != nil:
		return fmt.Errorf("migration: up failed: %w", err)
	}

	toVersion, _, _ := migrator.Version()
	logger.Info("migration_applied",
		slog.Uint64("from_version", uint64(fromVersion)),
		slog.Uint64("to_version", uint64(toVersion)),
		slog.Bool("embedded", migrationsPath == ""),
	)
	return nil
}

// newMigrator opens the embedded schema, or the directory when one is given.
func newMigrator(databaseURL, migrationsPath string) (*migrate.Migrate, error) {
	if migrationsPath != "" {
		return migrate.New("file://"+migrationsPath, databaseURL)
	}

	driver, err := embeddedSource()
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", driver, databaseURL)
}

// embeddedSource exposes data/migrations as a golang-migrate source.
func embeddedSource() (source.Driver, error) {
	return iofs.New(migrations.FS, ".")
}

// convertToPgx5DSN rewrites postgres:// and postgresql:// URLs to the pgx5://
// scheme the golang-migrate pgx/v5 driver registers.
func convertToPgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(dsn, prefix); found {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger routes golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (adapter *migrateLogger) Printf(format string, args ...any) {
	adapter.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "migrate"))
}

func (adapter *migrateLogger) Verbose() bool {
	return false
}
