// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. In development a local
.env file is merged into the environment first (see [LoadDotEnv]).

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Mail) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Configuration Schema

// Config holds all runtime configuration for the Foundersbase API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// PublicURL is the externally reachable frontend origin used in mailed links.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath overrides the embedded schema with a directory on disk.
	MigrationPath string `env:"MIGRATION_PATH"`

	// RedisURL enables cross-instance realtime fan-out. Empty keeps push in-process.
	RedisURL string `env:"REDIS_URL"`

	Auth      AuthConfig      `envPrefix:"AUTH_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Mail      MailConfig      `envPrefix:"MAIL_"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// AuthConfig groups the token and login policy settings.
type AuthConfig struct {
	// JWTSecret signs access tokens (HS256). Must be at least 32 bytes.
	JWTSecret string `env:"JWT_SECRET,required"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// RequireEmailVerification is the single switch that blocks login for unverified accounts.
	RequireEmailVerification bool `env:"REQUIRE_EMAIL_VERIFICATION" envDefault:"true"`
}

// RateLimitConfig configures the coarse per-IP limiter in front of every route.
type RateLimitConfig struct {
	RequestsPerMinute int           `env:"REQUESTS_PER_MINUTE" envDefault:"300"`
	IdleTTL           time.Duration `env:"IDLE_TTL"            envDefault:"2h"`
}

// MailConfig selects and configures the notification transport.
type MailConfig struct {
	// Driver is one of "log", "smtp", "mailgun" or "queue".
	Driver string `env:"DRIVER" envDefault:"log"`

	FromAddress string `env:"FROM_ADDRESS" envDefault:"no-reply@foundersbase.local"`
	FromName    string `env:"FROM_NAME"    envDefault:"Foundersbase"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_API_KEY"`
	MailgunEU     bool   `env:"MAILGUN_EU" envDefault:"false"`

	AMQPURL   string `env:"AMQP_URL"`
	AMQPQueue string `env:"AMQP_QUEUE" envDefault:"foundersbase.mail"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv merges the given .env files into the process environment.
// Variables that are already set win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: failed to load %s: %w", path, err)
		}
	}

	return nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("config: AUTH_JWT_SECRET must be at least 32 bytes")
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}

	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return errors.New("config: MAIL_SMTP_HOST is required for the smtp driver")
		}
	case "mailgun":
		if c.Mail.MailgunDomain == "" || c.Mail.MailgunAPIKey == "" {
			return errors.New("config: MAIL_MAILGUN_DOMAIN and MAIL_MAILGUN_API_KEY are required for the mailgun driver")
		}
	case "queue":
		if c.Mail.AMQPURL == "" {
			return errors.New("config: MAIL_AMQP_URL is required for the queue driver")
		}
	default:
		return fmt.Errorf("config: unknown MAIL_DRIVER %q", c.Mail.Driver)
	}

	return nil
}

// AllowedOrigins returns the CORS allow-list: the public URL plus any extras.
func (c *Config) AllowedOrigins() []string {
	origins := []string{strings.TrimRight(c.PublicURL, "/")}
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, strings.TrimRight(origin, "/"))
		}
	}
	return origins
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
