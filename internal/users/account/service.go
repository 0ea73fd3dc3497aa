// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/validate"
	"github.com/taibuivan/foundersbase/internal/users/auth"
	"github.com/taibuivan/foundersbase/pkg/ident"
)

// # Service Layer

// Service orchestrates business logic for user accounts.
type Service struct {
	accountRepository AccountRepository
	sessionRepository SessionRepository
	logger            *slog.Logger
}

// NewService constructs a new [Service] with its repository dependencies.
func NewService(accountRepo AccountRepository, sessionRepo SessionRepository, logger *slog.Logger) *Service {
	return &Service{
		accountRepository: accountRepo,
		sessionRepository: sessionRepo,
		logger:            logger,
	}
}

// # Profile Management

/*
GetProfile retrieves the full private identity of a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: The hydrated user profile
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, userID string) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return user, nil
}

// UpdateProfileInput defines the mutable subset of user profile fields.
// Nil fields are left unchanged.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
}

/*
UpdateProfile applies a partial set of changes to a user's names.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *auth.User: The updated user profile
  - error: Validation, not found or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	// Apply delta updates
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}

	validator := &validate.Validator{}
	validator.Required(FieldFirstName, user.FirstName).MaxLen(FieldFirstName, user.FirstName, auth.MaxNameLength)
	validator.Required(FieldLastName, user.LastName).MaxLen(FieldLastName, user.LastName, auth.MaxNameLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if err := service.accountRepository.UpdateNames(context, user.ID, user.FirstName, user.LastName); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	service.logger.InfoContext(context, "user_profile_updated", slog.String("user_id", userID))

	return user, nil
}

/*
ChangeUsername renames the signed-in account.

Description: A case-only change of the current name is allowed. Access tokens
issued before the change keep the old subject until they expire.

Parameters:
  - context: context.Context
  - userID: string
  - username: string

Returns:
  - *auth.User: The renamed profile
  - error: VALIDATION_ERROR, CONFLICT or storage failures
*/
func (service *Service) ChangeUsername(context context.Context, userID, username string) (*auth.User, error) {
	username = ident.Username(username)
	if err := (&validate.Validator{}).Required(FieldUsername, username).Username(FieldUsername, username).Err(); err != nil {
		return nil, err
	}

	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_change_username_lookup_failed: %w", err)
	}

	if user.Username == username {
		return user, nil
	}

	if err := service.accountRepository.UpdateUsername(context, user.ID, username); err != nil {
		if apperr.HasCode(err, apperr.CodeConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("account_service_change_username_failed: %w", err)
	}

	service.logger.InfoContext(context, "user_username_changed",
		slog.String("user_id", userID),
		slog.String("previous", user.Username),
	)

	user.Username = username
	return user, nil
}

// # Session Security

// ListSessions returns the devices currently holding a live refresh token.
func (service *Service) ListSessions(context context.Context, userID string) ([]SessionInfo, error) {
	sessions, err := service.sessionRepository.FindActiveByUserID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_sessions_failed: %w", err)
	}

	if sessions == nil {
		sessions = []SessionInfo{}
	}
	return sessions, nil
}

/*
RevokeSession terminates a specific user session by its ID.

Parameters:
  - context: context.Context
  - userID: string
  - sessionID: string

Returns:
  - error: NOT_FOUND or revocation failures
*/
func (service *Service) RevokeSession(context context.Context, userID, sessionID string) error {
	if err := (&validate.Validator{}).UUID("id", sessionID).Err(); err != nil {
		return err
	}

	if err := service.sessionRepository.Revoke(context, userID, sessionID); err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return err
		}
		return fmt.Errorf("account_service_revoke_session_failed: %w", err)
	}

	service.logger.InfoContext(context, "user_session_revoked",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)

	return nil
}
