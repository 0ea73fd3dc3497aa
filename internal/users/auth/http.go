// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/constants"
	"github.com/taibuivan/foundersbase/internal/platform/ctxutil"
	"github.com/taibuivan/foundersbase/internal/platform/middleware"
	requestutil "github.com/taibuivan/foundersbase/internal/platform/request"
	"github.com/taibuivan/foundersbase/internal/platform/respond"
	"github.com/taibuivan/foundersbase/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Refresh Tokens
//
// Refresh tokens are returned in the JSON body and mirrored in an HttpOnly
// cookie scoped to /api/v1/auth. Endpoints that take one accept either.
type Handler struct {
	authService   *Service
	secureCookies bool
}

// NewHandler constructs a new [Handler] with its service dependency.
// secureCookies should be true whenever the API is served over HTTPS.
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{authService: service, secureCookies: secureCookies}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register        : Creates a new account.
//   - POST /login           : Authenticates and returns a token pair.
//   - POST /refresh         : Rotates the refresh token.
//   - POST /logout          : Revokes all refresh tokens of the user.
//   - POST /change-password : Authenticated password change.
//   - POST /change-email    : Authenticated email change request.
//   - GET  /ws-ticket       : Short-lived websocket ticket.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/resend-verification", handler.resendVerification)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)
	router.Post("/confirm-email", handler.confirmEmail)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/change-password", handler.changePassword)
		r.Post("/change-email", handler.changeEmail)
		r.Get("/ws-ticket", handler.webSocketTicket)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type changeEmailRequest struct {
	NewEmail string `json:"new_email"`
}

// # Registration & Login

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Username, Email, Password, FirstName, LastName)

Response:
  - 201: User: Created user profile
  - 400: VALIDATION_ERROR: Bad input
  - 409: CONFLICT: Username or Email already exists
  - 429: RATE_LIMITED: Too many registrations from this address
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Username:  input.Username,
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		IPAddress: requestutil.Client(request).IPAddress,
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (Login, Password)

Response:
  - 200: Session: Token pair and User profile
  - 401: INVALID_CREDENTIALS
  - 403: ACCOUNT_DISABLED or EMAIL_NOT_VERIFIED
  - 429: RATE_LIMITED
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldLogin, input.Login)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	client := requestutil.Client(request)
	session, err := handler.authService.Login(request.Context(), LoginInput{
		Login:     input.Login,
		Password:  input.Password,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, session)
}

// # Session Management

/*
Refresh issues a new token pair using a valid refresh token.

POST /api/v1/auth/refresh

Request:
  - Body (optional): refreshRequest, otherwise the refresh token cookie

Response:
  - 200: Session: Rotated token pair
  - 400: INVALID_TOKEN: Missing, unknown, expired or revoked refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken, err := handler.presentedRefreshToken(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if refreshToken == "" {
		respond.Error(writer, request, apperr.InvalidToken("refresh token", ErrTokenInvalid))
		return
	}

	client := requestutil.Client(request)
	session, err := handler.authService.Refresh(request.Context(), RefreshInput{
		RefreshToken: refreshToken,
		UserAgent:    client.UserAgent,
		IPAddress:    client.IPAddress,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, session)
}

/*
Logout terminates every session of the user.

POST /api/v1/auth/logout

Description: The user is identified by the bearer token when present,
otherwise by the refresh token. Always answers 204 and clears the cookie.

Response:
  - 204: No Content
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	refreshToken, err := handler.presentedRefreshToken(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), ctxutil.GetUserID(request.Context()), refreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, handler.refreshCookie("", time.Time{}, -1))
	respond.NoContent(writer)
}

/*
WebSocketTicket issues a short-lived ticket for GET /ws?ticket=.

GET /api/v1/auth/ws-ticket

Response:
  - 200: {"ticket": "..."}
  - 401: UNAUTHORIZED
*/
func (handler *Handler) webSocketTicket(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	ticket, err := handler.authService.IssueWebSocketTicket(request.Context(), claims)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoStore(writer)
	respond.OK(writer, map[string]any{FieldTicket: ticket})
}

// # Email Verification

/*
VerifyEmail confirms a user's email ownership.

POST /api/v1/auth/verify-email

Request:
  - Body: tokenRequest (Token), or ?token=

Response:
  - 200: Success: Email verified
  - 400: INVALID_TOKEN
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	token, ok := handler.presentedToken(writer, request)
	if !ok {
		return
	}

	if err := handler.authService.VerifyEmail(request.Context(), token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldMessage: "Email verified"})
}

// ResendVerification mails a fresh verification link. The answer does not depend on the address.
//
// POST /api/v1/auth/resend-verification
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	email, ok := handler.presentedEmail(writer, request)
	if !ok {
		return
	}

	if err := handler.authService.ResendVerification(request.Context(), email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldMessage: "If the account exists and is not verified, a new link has been sent"})
}

// # Password Recovery

/*
ForgotPassword starts the password reset flow.

POST /api/v1/auth/forgot-password

Request:
  - Body: emailRequest (Email)

Response:
  - 200: Success: Always, to prevent account enumeration
  - 429: RATE_LIMITED
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	email, ok := handler.presentedEmail(writer, request)
	if !ok {
		return
	}

	if err := handler.authService.ForgotPassword(request.Context(), email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldMessage: "If the account exists, a reset link has been sent"})
}

/*
ResetPassword completes the password reset flow.

POST /api/v1/auth/reset-password

Request:
  - Body: resetPasswordRequest (Token, Password)

Response:
  - 200: Success: Password updated, all sessions revoked
  - 400: VALIDATION_ERROR or INVALID_TOKEN
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldMessage: "Password has been reset"})
}

/*
ChangePassword updates the password of the signed-in user.

POST /api/v1/auth/change-password

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 204: No Content: Password changed, all refresh tokens revoked
  - 400: VALIDATION_ERROR
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, handler.refreshCookie("", time.Time{}, -1))
	respond.NoContent(writer)
}

// # Email Change

// ChangeEmail mails a confirmation link to the requested address.
//
// POST /api/v1/auth/change-email
func (handler *Handler) changeEmail(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changeEmailRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RequestEmailChange(request.Context(), userID, input.NewEmail); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldMessage: "Confirmation sent to the new email"})
}

// ConfirmEmail applies a pending email change.
//
// POST /api/v1/auth/confirm-email
func (handler *Handler) confirmEmail(writer http.ResponseWriter, request *http.Request) {
	token, ok := handler.presentedToken(writer, request)
	if !ok {
		return
	}

	if err := handler.authService.ConfirmEmailChange(request.Context(), token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldMessage: "Email updated"})
}

// # Helpers

func (handler *Handler) writeSession(writer http.ResponseWriter, session *Session) {
	http.SetCookie(writer, handler.refreshCookie(session.RefreshToken, session.RefreshTokenExpiresAt, 0))
	respond.NoStore(writer)

	respond.OK(writer, map[string]any{
		FieldAccessToken:  session.AccessToken,
		FieldTokenType:    "Bearer",
		FieldExpiresIn:    int64(session.AccessTokenExpiresIn / time.Second),
		FieldRefreshToken: session.RefreshToken,
		FieldUser:         session.User,
	})
}

func (handler *Handler) refreshCookie(value string, expiresAt time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    value,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  expiresAt,
		MaxAge:   maxAge,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// presentedRefreshToken reads the refresh token from the body, falling back to the cookie.
func (handler *Handler) presentedRefreshToken(request *http.Request) (string, error) {
	var input refreshRequest
	if err := requestutil.DecodeOptionalJSON(request, &input); err != nil {
		return "", err
	}

	if input.RefreshToken != "" {
		return input.RefreshToken, nil
	}

	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		return cookie.Value, nil
	}
	return "", nil
}

// presentedToken reads a single-use token from the body or the query string.
func (handler *Handler) presentedToken(writer http.ResponseWriter, request *http.Request) (string, bool) {
	var input tokenRequest
	if err := requestutil.DecodeOptionalJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return "", false
	}

	if input.Token == "" {
		input.Token = request.URL.Query().Get(FieldToken)
	}

	if input.Token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldToken, "This field is required"))
		return "", false
	}
	return input.Token, true
}

func (handler *Handler) presentedEmail(writer http.ResponseWriter, request *http.Request) (string, bool) {
	var input emailRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return "", false
	}

	if err := (&validate.Validator{}).Required(FieldEmail, input.Email).Err(); err != nil {
		respond.Error(writer, request, err)
		return "", false
	}
	return input.Email, true
}
