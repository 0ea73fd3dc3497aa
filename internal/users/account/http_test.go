// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/foundersbase/internal/platform/middleware"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
)

func TestHandler_AccountEndpoints(t *testing.T) {
	service, _ := newTestService()
	tokens, err := sec.NewTokenService("unit-test-secret-unit-test-secret-42", "foundersbase.test", 15*time.Minute)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(middleware.RequestID())
	router.Use(middleware.Authenticate(tokens))
	router.Mount("/api/v1/account", NewHandler(service).Routes())

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	expect := httpexpect.Default(t, server.URL)

	token, err := tokens.GenerateAccessToken(sec.Identity{UserID: aliceID, Username: "alice", Email: "alice@x.com", Role: sec.RoleUser})
	require.NoError(t, err)
	bearer := "Bearer " + token

	// Anonymous callers are turned away.
	expect.GET("/api/v1/account/me").
		Expect().
		Status(http.StatusUnauthorized)

	expect.GET("/api/v1/account/me").
		WithHeader("Authorization", bearer).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Object().
		HasValue("username", "alice").
		HasValue("email", "alice@x.com")

	expect.PATCH("/api/v1/account/profile").
		WithHeader("Authorization", bearer).
		WithJSON(map[string]string{"last_name": "Pleasance"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Object().
		HasValue("first_name", "Alice").
		HasValue("last_name", "Pleasance")

	expect.POST("/api/v1/account/change-username").
		WithHeader("Authorization", bearer).
		WithJSON(map[string]string{"username": "bob"}).
		Expect().
		Status(http.StatusConflict)

	expect.GET("/api/v1/account/sessions").
		WithHeader("Authorization", bearer).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Array().Length().IsEqual(1)

	expect.DELETE("/api/v1/account/sessions/{id}", sessionID).
		WithHeader("Authorization", bearer).
		Expect().
		Status(http.StatusNoContent)

	expect.DELETE("/api/v1/account/sessions/{id}", sessionID).
		WithHeader("Authorization", bearer).
		Expect().
		Status(http.StatusNotFound)
}
