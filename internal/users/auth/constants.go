// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Token Lifetimes

const (
	// VerificationTokenTTL is how long an email verification link stays valid.
	VerificationTokenTTL = 24 * time.Hour

	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL = 2 * time.Hour

	// EmailChangeTokenTTL is how long an email change confirmation stays valid.
	EmailChangeTokenTTL = 48 * time.Hour
)

// # Rate Limits

// RateLimit is a (capacity, window) pair for one limited action.
type RateLimit struct {
	Prefix   string
	Capacity int
	Window   time.Duration
}

// Key builds the limiter key for a subject (ip or email).
func (limit RateLimit) Key(subject string) string {
	return limit.Prefix + ":" + subject
}

var (
	LoginLimit              = RateLimit{Prefix: "login", Capacity: 5, Window: time.Minute}
	ForgotPasswordLimit     = RateLimit{Prefix: "forgot", Capacity: 5, Window: time.Hour}
	ResendVerificationLimit = RateLimit{Prefix: "resend", Capacity: 3, Window: time.Hour}
	RegisterLimit           = RateLimit{Prefix: "register", Capacity: 10, Window: time.Hour}
)

// # Profile Constraints

const (
	MaxNameLength = 100
)
