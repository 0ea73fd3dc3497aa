// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/mail"
	"github.com/taibuivan/foundersbase/internal/platform/metrics"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
	"github.com/taibuivan/foundersbase/internal/platform/validate"
	"github.com/taibuivan/foundersbase/pkg/ident"
	"github.com/taibuivan/foundersbase/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for minting access tokens.
type TokenProvider interface {
	GenerateAccessToken(identity sec.Identity) (string, error)
	GenerateTicket(identity sec.Identity) (string, error)
	AccessTTL() time.Duration
}

// Limiter guards abuse-sensitive actions with keyed token buckets.
type Limiter interface {
	Acquire(key string, capacity int, window time.Duration) bool
}

// Notifier delivers the account emails.
type Notifier interface {
	SendVerification(context context.Context, to mail.Recipient, token string) error
	SendPasswordReset(context context.Context, to mail.Recipient, token string) error
	SendEmailChange(context context.Context, to mail.Recipient, token string) error
}

// Service implements user authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed by the security team.
type Service struct {
	userRepository    UserRepository
	ledger            *Ledger
	oneTimeRepository OneTimeTokenRepository
	tokenProvider     TokenProvider
	limiter           Limiter
	notifier          Notifier
	requireVerified   bool
	clock             func() time.Time
	logger            *slog.Logger
}

// Option customises a [Service].
type Option func(*Service)

// WithEmailVerification toggles whether login requires a verified email.
func WithEmailVerification(required bool) Option {
	return func(service *Service) { service.requireVerified = required }
}

// WithClock overrides the time source of the service and its ledger.
func WithClock(clock func() time.Time) Option {
	return func(service *Service) {
		service.clock = clock
		service.ledger.clock = clock
	}
}

// WithLogger sets the logger used for audit events.
func WithLogger(logger *slog.Logger) Option {
	return func(service *Service) { service.logger = logger }
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	userRepo UserRepository,
	ledger *Ledger,
	oneTimeRepo OneTimeTokenRepository,
	tokenProv TokenProvider,
	limiter Limiter,
	notifier Notifier,
	options ...Option,
) *Service {
	service := &Service{
		userRepository:    userRepo,
		ledger:            ledger,
		oneTimeRepository: oneTimeRepo,
		tokenProvider:     tokenProv,
		limiter:           limiter,
		notifier:          notifier,
		requireVerified:   true,
		clock:             time.Now,
		logger:            slog.Default(),
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// Session is the token pair handed to a client after login or refresh.
type Session struct {
	AccessToken           string
	AccessTokenExpiresIn  time.Duration
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *User
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	IPAddress string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Creates an enabled, unverified member with the default role and
mails a verification link. A failed mail is logged and does not fail the call.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: RATE_LIMITED, VALIDATION_ERROR, CONFLICT or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {

	// 1. Throttle account creation per client address
	if err := service.acquire(RegisterLimit, input.IPAddress); err != nil {
		return nil, err
	}

	// 2. Canonicalise and validate
	username := ident.Username(input.Username)
	email := ident.Email(input.Email)
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)

	validator := &validate.Validator{}
	validator.Required(FieldUsername, username).Username(FieldUsername, username)
	validator.Required(FieldEmail, email).Email(FieldEmail, email)
	validator.Password(FieldPassword, input.Password)
	validator.Required(FieldFirstName, firstName).MaxLen(FieldFirstName, firstName, MaxNameLength)
	validator.Required(FieldLastName, lastName).MaxLen(FieldLastName, lastName, MaxNameLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// 3. Uniqueness pre-checks; the unique indexes still catch races
	taken, err := service.userRepository.ExistsByUsername(context, username)
	if err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}
	if taken {
		return nil, apperr.Conflict("Username is already taken")
	}

	taken, err = service.userRepository.ExistsByEmail(context, email)
	if err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}
	if taken {
		return nil, apperr.Conflict("Email is already registered")
	}

	// 4. Hash and persist
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	now := service.clock()
	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         sec.RoleUser,
		IsEnabled:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := service.userRepository.Create(context, user); err != nil {
		if apperr.HasCode(err, apperr.CodeConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	service.record("register", "success")
	service.logger.InfoContext(context, "user_registered", slog.String("user_id", user.ID))

	// 5. Verification mail, best effort
	service.sendVerification(context, user)

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Login     string // Username or email
	Password  string
	UserAgent string
	IPAddress string
}

/*
Login validates user credentials and issues security tokens.

Description: Rate-checks the client address, resolves the identity
(username first, then email), verifies the password and the account state,
then issues an access token and a refresh token.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Transport-ready token pair
  - error: RATE_LIMITED, INVALID_CREDENTIALS, ACCOUNT_DISABLED, EMAIL_NOT_VERIFIED or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*Session, error) {

	// 1. Rate check
	if err := service.acquire(LoginLimit, input.IPAddress); err != nil {
		service.record("login", "rate_limited")
		return nil, err
	}

	// 2. Credentials
	user, err := service.resolveIdentity(context, strings.TrimSpace(input.Login))
	if err != nil {
		return nil, err
	}

	if user == nil {
		// Keep the response time close to the found-user path.
		sec.CheckPasswordHash(input.Password, dummyPasswordHash())
		service.record("login", "invalid_credentials")
		return nil, apperr.InvalidCredentials()
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		service.record("login", "invalid_credentials")
		return nil, apperr.InvalidCredentials()
	}

	// 3. Account state
	if !user.IsEnabled {
		service.record("login", "disabled")
		return nil, apperr.AccountDisabled()
	}

	if service.requireVerified && !user.IsEmailVerified {
		service.record("login", "unverified")
		return nil, apperr.EmailNotVerified()
	}

	// 4. Authenticated
	now := service.clock()
	if err := service.userRepository.UpdateLastLogin(context, user.ID, now); err != nil {
		service.logger.WarnContext(context, "last_login_update_failed", slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		user.LastLoginAt = &now
	}

	session, err := service.openSession(context, user, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, err
	}

	service.record("login", "success")
	return session, nil
}

// resolveIdentity finds the account by username, then by email. A nil user means no match.
func (service *Service) resolveIdentity(context context.Context, login string) (*User, error) {
	if login == "" {
		return nil, nil
	}

	user, err := service.userRepository.FindByUsername(context, ident.Username(login))
	if err == nil {
		return user, nil
	}
	if !apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	if !ident.LooksLikeEmail(login) {
		return nil, nil
	}

	user, err = service.userRepository.FindByEmail(context, ident.Email(login))
	if err == nil {
		return user, nil
	}
	if !apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	return nil, nil
}

var dummyPasswordHash = sync.OnceValue(func() string {
	hash, _ := sec.HashPassword("foundersbase-timing-equaliser")
	return hash
})

func (service *Service) openSession(context context.Context, user *User, ipAddress, userAgent string) (*Session, error) {
	accessToken, err := service.tokenProvider.GenerateAccessToken(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	refresh, err := service.ledger.Issue(context, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	return &Session{
		AccessToken:           accessToken,
		AccessTokenExpiresIn:  service.tokenProvider.AccessTTL(),
		RefreshToken:          refresh.Token,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
		User:                  user,
	}, nil
}

// # Session Management

// RefreshInput carries a presented refresh token and the client fingerprint.
type RefreshInput struct {
	RefreshToken string
	UserAgent    string
	IPAddress    string
}

/*
Refresh implements the refresh token rotation mechanism.

Description: Resolves the token owner, rotates the token in the ledger and
issues a fresh access token. Every ledger failure is reported to the client
as the same INVALID_TOKEN error; a revoked token is logged as a replay.

Parameters:
  - context: context.Context
  - input: RefreshInput

Returns:
  - *Session: New token pair
  - error: INVALID_TOKEN or storage failures
*/
func (service *Service) Refresh(context context.Context, input RefreshInput) (*Session, error) {

	// 1. Resolve the owner
	ownerID, err := service.ledger.Owner(context, input.RefreshToken)
	if err != nil {
		return nil, service.refreshFailure(context, "", err)
	}

	// 2. The owner must still be allowed in
	user, err := service.userRepository.FindByID(context, ownerID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, service.refreshFailure(context, ownerID, ErrTokenInvalid)
		}
		return nil, fmt.Errorf("auth_service_refresh_failed: %w", err)
	}
	if !user.IsEnabled {
		return nil, service.refreshFailure(context, ownerID, ErrTokenInvalid)
	}

	// 3. Rotate
	next, err := service.ledger.Rotate(context, input.RefreshToken, user.ID, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, service.refreshFailure(context, user.ID, err)
	}

	// 4. New access token
	accessToken, err := service.tokenProvider.GenerateAccessToken(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_access_token_failed: %w", err)
	}

	service.record("refresh", "success")
	return &Session{
		AccessToken:           accessToken,
		AccessTokenExpiresIn:  service.tokenProvider.AccessTTL(),
		RefreshToken:          next.Token,
		RefreshTokenExpiresAt: next.ExpiresAt,
		User:                  user,
	}, nil
}

// refreshFailure maps a ledger error onto the client-facing response.
func (service *Service) refreshFailure(context context.Context, userID string, err error) error {
	reason := tokenFailureReason(err)
	if reason == "error" {
		return fmt.Errorf("auth_service_refresh_failed: %w", err)
	}

	if errors.Is(err, ErrTokenRevoked) {
		service.logger.WarnContext(context, "refresh_token_replay_detected", slog.String("user_id", userID))
	}

	service.record("refresh", reason)
	return apperr.InvalidToken("refresh token", err)
}

/*
Logout revokes every refresh token of the user.

Description: The user is taken from the access token when present, otherwise
from the refresh token, which must still be live. Other tokens are ignored so
logout always succeeds from the client's point of view. Access tokens remain valid until they expire.

Parameters:
  - context: context.Context
  - userID: Authenticated user, may be empty
  - refreshToken: Presented refresh token, may be empty

Returns:
  - error: Storage failures only
*/
func (service *Service) Logout(context context.Context, userID, refreshToken string) error {
	if userID == "" {

		// Only a live refresh token identifies the user.
		owner, err := service.ledger.LiveOwner(context, refreshToken)
		if err != nil {
			reason := tokenFailureReason(err)
			if reason == "error" {
				return fmt.Errorf("auth_service_logout_failed: %w", err)
			}
			service.record("logout", reason)
			return nil
		}
		userID = owner
	}

	revoked, err := service.ledger.RevokeAll(context, userID)
	if err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	service.record("logout", "success")
	service.logger.InfoContext(context, "user_logged_out", slog.String("user_id", userID), slog.Int64("revoked", revoked))
	return nil
}

// IssueWebSocketTicket mints a short-lived ticket for the realtime endpoint.
func (service *Service) IssueWebSocketTicket(context context.Context, claims *sec.AuthClaims) (string, error) {
	if claims == nil || claims.UserID == "" {
		return "", apperr.Unauthorized("Authentication required")
	}

	ticket, err := service.tokenProvider.GenerateTicket(sec.Identity{
		UserID:   claims.UserID,
		Username: claims.Username(),
		Email:    claims.Email,
		Role:     claims.Role,
	})
	if err != nil {
		return "", fmt.Errorf("auth_service_ticket_failed: %w", err)
	}
	return ticket, nil
}

// # Email Verification

// VerifyEmail consumes a verification token and marks the account verified.
func (service *Service) VerifyEmail(context context.Context, token string) error {
	consumed, err := service.consume(context, KindVerifyEmail, "verification token", token, TokenEffect{})
	if err != nil {
		return err
	}

	service.logger.InfoContext(context, "email_verified", slog.String("user_id", consumed.UserID))
	return nil
}

/*
ResendVerification mails a fresh verification link.

Description: Silent for unknown or already verified addresses so the endpoint
cannot be used to probe registrations.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: RATE_LIMITED or storage failures
*/
func (service *Service) ResendVerification(context context.Context, email string) error {
	email = ident.Email(email)
	if err := service.acquire(ResendVerificationLimit, email); err != nil {
		return err
	}

	user, err := service.findByEmailQuiet(context, email)
	if err != nil || user == nil || user.IsEmailVerified {
		return err
	}

	service.sendVerification(context, user)
	return nil
}

// # Password Recovery

/*
ForgotPassword initiates the forgot-password flow.

Description: Rate-limited per email. Silent for unknown addresses to prevent
user enumeration.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: RATE_LIMITED or storage failures
*/
func (service *Service) ForgotPassword(context context.Context, email string) error {
	email = ident.Email(email)
	if err := service.acquire(ForgotPasswordLimit, email); err != nil {
		return err
	}

	user, err := service.findByEmailQuiet(context, email)
	if err != nil || user == nil || !user.IsEnabled {
		return err
	}

	token, err := service.issueOneTime(context, user.ID, KindResetPassword, "", ResetTokenTTL)
	if err != nil {
		return err
	}

	if err := service.notifier.SendPasswordReset(context, recipientOf(user, user.Email), token); err != nil {
		service.logger.WarnContext(context, "password_reset_mail_failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return nil
}

/*
ResetPassword completes the forgot-password flow.

Description: Consumes the token, stores the new hash and revokes every
refresh token of the user in one transaction.

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string

Returns:
  - error: VALIDATION_ERROR, INVALID_TOKEN or storage failures
*/
func (service *Service) ResetPassword(context context.Context, token, newPassword string) error {
	if err := (&validate.Validator{}).Password(FieldNewPassword, newPassword).Err(); err != nil {
		return err
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	consumed, err := service.consume(context, KindResetPassword, "reset token", token, TokenEffect{PasswordHash: hashedPassword})
	if err != nil {
		return err
	}

	service.record("password_reset", "success")
	service.logger.InfoContext(context, "password_reset", slog.String("user_id", consumed.UserID))
	return nil
}

// ChangePasswordInput carries an authenticated password change.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// ChangePassword replaces the password after checking the current one and revokes all refresh tokens.
func (service *Service) ChangePassword(context context.Context, input ChangePasswordInput) error {
	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword)
	validator.Password(FieldNewPassword, input.NewPassword)
	validator.Custom(FieldNewPassword, input.NewPassword == input.CurrentPassword, "Must differ from the current password")
	if err := validator.Err(); err != nil {
		return err
	}

	user, err := service.userRepository.FindByID(context, input.UserID)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_failed: %w", err)
	}

	if !sec.CheckPasswordHash(input.CurrentPassword, user.PasswordHash) {
		return validate.RequiredError(FieldCurrentPassword, "Current password is incorrect")
	}

	hashedPassword, err := sec.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	revoked, err := service.userRepository.ReplacePassword(context, user.ID, hashedPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_failed: %w", err)
	}

	service.logger.InfoContext(context, "password_changed", slog.String("user_id", user.ID), slog.Int64("revoked", revoked))
	return nil
}

// # Email Change

/*
RequestEmailChange mails a confirmation link to the new address.

Parameters:
  - context: context.Context
  - userID: Authenticated user
  - newEmail: Requested address

Returns:
  - error: VALIDATION_ERROR, CONFLICT or storage failures
*/
func (service *Service) RequestEmailChange(context context.Context, userID, newEmail string) error {
	newEmail = ident.Email(newEmail)
	if err := (&validate.Validator{}).Required(FieldNewEmail, newEmail).Email(FieldNewEmail, newEmail).Err(); err != nil {
		return err
	}

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return fmt.Errorf("auth_service_change_email_failed: %w", err)
	}

	if user.Email == newEmail {
		return validate.RequiredError(FieldNewEmail, "New email must differ from the current one")
	}

	taken, err := service.userRepository.ExistsByEmail(context, newEmail)
	if err != nil {
		return fmt.Errorf("auth_service_change_email_failed: %w", err)
	}
	if taken {
		return apperr.Conflict("Email is already registered")
	}

	token, err := service.issueOneTime(context, user.ID, KindChangeEmail, newEmail, EmailChangeTokenTTL)
	if err != nil {
		return err
	}

	if err := service.notifier.SendEmailChange(context, recipientOf(user, newEmail), token); err != nil {
		service.logger.WarnContext(context, "email_change_mail_failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return nil
}

// ConfirmEmailChange consumes an email change token, moving the account to the new, verified address.
func (service *Service) ConfirmEmailChange(context context.Context, token string) error {
	consumed, err := service.consume(context, KindChangeEmail, "email change token", token, TokenEffect{})
	if err != nil {
		return err
	}

	service.logger.InfoContext(context, "email_changed", slog.String("user_id", consumed.UserID))
	return nil
}

// # Helpers

// acquire takes one token from the limit's bucket for subject.
func (service *Service) acquire(limit RateLimit, subject string) error {
	if service.limiter.Acquire(limit.Key(subject), limit.Capacity, limit.Window) {
		return nil
	}
	refill := limit.Window.Seconds() / float64(limit.Capacity)
	return apperr.RateLimited(int(math.Ceil(refill)))
}

func (service *Service) findByEmailQuiet(context context.Context, email string) (*User, error) {
	user, err := service.userRepository.FindByEmail(context, email)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth_service_lookup_failed: %w", err)
	}
	return user, nil
}

// issueOneTime stores a new single-use token and returns its opaque value.
func (service *Service) issueOneTime(context context.Context, userID string, kind TokenKind, newEmail string, timeToLive time.Duration) (string, error) {
	token, err := sec.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("auth_service_generate_token_failed: %w", err)
	}

	now := service.clock()
	record := &OneTimeToken{
		ID:        uuid.New(),
		TokenHash: sec.HashToken(token),
		Kind:      kind,
		UserID:    userID,
		NewEmail:  newEmail,
		CreatedAt: now,
		ExpiresAt: now.Add(timeToLive),
	}

	if err := service.oneTimeRepository.Create(context, record); err != nil {
		return "", fmt.Errorf("auth_service_save_token_failed: %w", err)
	}
	return token, nil
}

// consume redeems a single-use token, mapping every rejection to INVALID_TOKEN.
func (service *Service) consume(context context.Context, kind TokenKind, label, token string, effect TokenEffect) (*OneTimeToken, error) {
	if token == "" {
		return nil, apperr.InvalidToken(label, ErrTokenNotFound)
	}

	consumed, err := service.oneTimeRepository.Consume(context, kind, sec.HashToken(token), service.clock(), effect)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
			service.record(string(kind), tokenFailureReason(err))
			return nil, apperr.InvalidToken(label, err)
		case apperr.IsAppError(err):
			return nil, err
		default:
			return nil, fmt.Errorf("auth_service_consume_%s_failed: %w", kind, err)
		}
	}

	service.record(string(kind), "success")
	return consumed, nil
}

func (service *Service) sendVerification(context context.Context, user *User) {
	token, err := service.issueOneTime(context, user.ID, KindVerifyEmail, "", VerificationTokenTTL)
	if err != nil {
		service.logger.WarnContext(context, "verification_token_failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}

	if err := service.notifier.SendVerification(context, recipientOf(user, user.Email), token); err != nil {
		service.logger.WarnContext(context, "verification_mail_failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}
}

func recipientOf(user *User, email string) mail.Recipient {
	return mail.Recipient{Email: email, Name: user.DisplayName()}
}

func (service *Service) record(event, result string) {
	metrics.AuthEventsTotal.WithLabelValues(event, result).Inc()
}
