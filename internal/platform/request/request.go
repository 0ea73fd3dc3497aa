// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package requestutil extracts typed input from inbound HTTP requests.

Handlers use it to decode bounded JSON bodies, read chi path parameters,
resolve the authenticated caller and capture the client fingerprint stored on
refresh tokens.
*/
package requestutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/ctxutil"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
	"github.com/taibuivan/foundersbase/internal/platform/validate"
)

const (
	// maxBodyBytes caps JSON request bodies. A chat message is at most 4000 runes.
	maxBodyBytes = 64 << 10

	// Column widths of users.refreshtoken.
	maxIPAddressLength = 64
	maxUserAgentLength = 512
)

// errBodyTooLarge is returned when a body exceeds maxBodyBytes.
var errBodyTooLarge = apperr.ValidationError("Request body too large")

// # Body Decoding

/*
DecodeJSON reads the request body and decodes it into target.

Unknown fields are rejected so that typos in client payloads surface early.

Parameters:
  - request: *http.Request
  - target: Pointer to the destination struct

Returns:
  - error: VALIDATION_ERROR for an oversized or malformed body, otherwise nil
*/
func DecodeJSON(request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, request.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decodeError(decoder.Decode(target), false)
}

// DecodeOptionalJSON behaves like [DecodeJSON] but accepts an empty body and unknown fields.
func DecodeOptionalJSON(request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, request.Body, maxBodyBytes))
	return decodeError(decoder.Decode(target), true)
}

func decodeError(err error, allowEmpty bool) error {
	var tooLarge *http.MaxBytesError

	switch {
	case err == nil:
		return nil
	case allowEmpty && errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return errBodyTooLarge
	default:
		return validate.ErrInvalidJSON
	}
}

// # Routing

// Param retrieves a named chi URL parameter.
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

// # Caller Identity

/*
RequiredClaims ensures the request is authenticated and returns the caller's claims.

Returns:
  - *sec.AuthClaims: The authenticated claims
  - error: apperr.Unauthorized if the request is anonymous
*/
func RequiredClaims(request *http.Request) (*sec.AuthClaims, error) {
	claims := ctxutil.GetAuthUser(request.Context())
	if claims == nil || claims.UserID == "" {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return claims, nil
}

// RequiredUserID returns the caller's user id or UNAUTHORIZED.
func RequiredUserID(request *http.Request) (string, error) {
	claims, err := RequiredClaims(request)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// # Client Fingerprint

// ClientInfo is the network identity recorded against an issued refresh token.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Client returns the resolved client address and user agent, clipped to their column widths.
func Client(request *http.Request) ClientInfo {
	return ClientInfo{
		IPAddress: clip(ctxutil.GetClientIP(request.Context()), maxIPAddressLength),
		UserAgent: clip(strings.TrimSpace(request.UserAgent()), maxUserAgentLength),
	}
}

// clip cuts value to at most limit runes.
func clip(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}
