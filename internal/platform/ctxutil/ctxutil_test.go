// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/foundersbase/internal/platform/ctxutil"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
)

func TestRequestValues(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, ctxutil.GetRequestID(ctx))
	assert.Equal(t, "unknown", ctxutil.GetClientIP(ctx))
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	ctx = ctxutil.WithRequestID(ctx, "0190a1b2-0000-7000-8000-000000000001")
	ctx = ctxutil.WithClientIP(ctx, "203.0.113.7")

	assert.Equal(t, "0190a1b2-0000-7000-8000-000000000001", ctxutil.GetRequestID(ctx))
	assert.Equal(t, "203.0.113.7", ctxutil.GetClientIP(ctx))
}

func TestAuthUser(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ctxutil.GetAuthUser(ctx))
	assert.Empty(t, ctxutil.GetUserID(ctx))

	ctx = ctxutil.WithAuthUser(ctx, &sec.AuthClaims{UserID: "user-123", Role: sec.RoleAdmin})

	assert.Equal(t, sec.RoleAdmin, ctxutil.GetAuthUser(ctx).Role)
	assert.Equal(t, "user-123", ctxutil.GetUserID(ctx))
}

func TestAuthUser_ScopesRequestLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))

	ctx := ctxutil.WithLogger(context.Background(), logger)
	ctx = ctxutil.WithAuthUser(ctx, &sec.AuthClaims{UserID: "user-456"})

	ctxutil.GetLogger(ctx).Info("conversation_listed")

	assert.Contains(t, buffer.String(), `"user_id":"user-456"`)
}
