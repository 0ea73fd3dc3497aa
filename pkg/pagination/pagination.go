// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination provides shared types and helpers for API list endpoints.
//
// # Overview
//
// Chat history is read with keyset pagination: the client passes the creation
// time of the oldest message it holds ("before") and receives the page that
// precedes it. Offsets are never used because new messages keep arriving.
package pagination

import (
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultLimit is the number of items per page if not specified.
	DefaultLimit = 50
	// MaxLimit is the upper bound for items per page to prevent system abuse.
	MaxLimit = 200
)

// Cursor holds the parsed keyset position and page size.
type Cursor struct {
	// Before excludes items created at or after this instant. Zero means "latest".
	Before time.Time
	Limit  int
}

// HasBefore reports whether the cursor points into history.
func (c Cursor) HasBefore() bool {
	return !c.Before.IsZero()
}

// Meta is the pagination metadata included in API list responses.
type Meta struct {
	Limit      int        `json:"limit"`
	NextCursor *time.Time `json:"next_cursor,omitempty"`
}

// NewMeta builds metadata for a page; a full page yields a cursor to the next one.
func NewMeta(limit, returned int, oldest time.Time) Meta {
	meta := Meta{Limit: limit}
	if returned >= limit && !oldest.IsZero() {
		next := oldest.UTC()
		meta.NextCursor = &next
	}
	return meta
}

// FromRequest parses "before" (RFC 3339) and "limit" query parameters.
//
// # Clamping
//
// Invalid, negative, or excessive limits fall back to [DefaultLimit] or are
// capped at [MaxLimit]. An unparsable "before" is ignored.
func FromRequest(r *http.Request) Cursor {
	limit := parseIntParam(r, "limit", DefaultLimit)

	if limit < 1 {
		limit = DefaultLimit
	}

	if limit > MaxLimit {
		limit = MaxLimit
	}

	cursor := Cursor{Limit: limit}
	if raw := r.URL.Query().Get("before"); raw != "" {
		if before, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			cursor.Before = before
		}
	}

	return cursor
}

// parseIntParam parses a single integer query parameter with a fallback default.
func parseIntParam(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}

	return n
}
