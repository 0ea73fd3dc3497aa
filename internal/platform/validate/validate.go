// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// This package is used in the service layer only, never in handlers or storage,
// so business logic only operates on semantically valid data.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/pkg/ident"
	"github.com/taibuivan/foundersbase/pkg/uuid"
)

const (
	// PasswordMinLen follows the registration policy.
	PasswordMinLen = 8
	// PasswordMaxBytes is the bcrypt input limit; longer inputs are silently truncated by bcrypt.
	PasswordMaxBytes = 72
)

var (
	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// Email fails if the value is not a bare RFC 5322 address (no display name).
func (v *Validator) Email(field, value string) *Validator {
	address, err := mail.ParseAddress(value)
	if err != nil || address.Address != value {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// Username fails if the value is not a 3-30 character handle.
//
// # Format
//
// ASCII letters, digits, dot, underscore and hyphen; must start and end with
// a letter or digit.
func (v *Validator) Username(field, value string) *Validator {
	if !ident.ValidUsername(value) {
		v.add(field, "Must be 3-30 characters: letters, digits, '.', '_' or '-'")
	}
	return v
}

// Password fails if the value is too short or exceeds the bcrypt input limit.
func (v *Validator) Password(field, value string) *Validator {
	switch {
	case utf8.RuneCountInString(value) < PasswordMinLen:
		v.add(field, fmt.Sprintf("Minimum %d characters", PasswordMinLen))
	case len(value) > PasswordMaxBytes:
		v.add(field, fmt.Sprintf("Maximum %d bytes", PasswordMaxBytes))
	}
	return v
}

// UUID fails if the value is not a valid UUID string.
func (v *Validator) UUID(field, value string) *Validator {
	if !uuid.Valid(strings.ToLower(value)) {
		v.add(field, "Must be a valid UUID")
	}
	return v
}

// NotSelf fails when a user names themselves as the counterpart of an action.
func (v *Validator) NotSelf(field, actorID, targetID string) *Validator {
	if actorID != "" && strings.EqualFold(actorID, targetID) {
		v.add(field, "Must not be yourself")
	}
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("password", next == current, "Must differ from the current password")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// Err is the terminal call of a chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}
