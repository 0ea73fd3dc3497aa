// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ident canonicalises user-supplied identities (emails, usernames).
//
// # Usage
//
// Two visually identical inputs must map to the same account. Both helpers
// apply Unicode NFKC first, so full-width or compatibility forms collapse onto
// their plain equivalents before uniqueness checks and lookups.
package ident

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// usernamePattern allows ASCII letters, digits, dot, underscore and hyphen.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]{1,28}[A-Za-z0-9])$`)

var lower = cases.Lower(language.Und)

// Email returns the canonical storage form of an email address.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFKC.
// 2. Trims surrounding whitespace.
// 3. Lower-cases the whole address.
func Email(raw string) string {
	return lower.String(strings.TrimSpace(norm.NFKC.String(raw)))
}

// Username returns the display form of a username (NFKC, trimmed).
// Case is preserved; comparisons use [UsernameKey].
func Username(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(raw))
}

// UsernameKey returns the case-insensitive comparison key of a username.
func UsernameKey(raw string) string {
	return lower.String(Username(raw))
}

// ValidUsername reports whether the display form is an acceptable handle (3-30 chars).
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// LooksLikeEmail reports whether a login identity should be resolved as an email.
func LooksLikeEmail(identity string) bool {
	return strings.Contains(identity, "@")
}
