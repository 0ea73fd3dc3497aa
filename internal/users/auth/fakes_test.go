// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/mail"
	"github.com/taibuivan/foundersbase/pkg/ident"
)

// memoryDB backs the three repository fakes with one lock, so multi-table
// effects are atomic the same way the Postgres transactions are.
type memoryDB struct {
	mu       sync.Mutex
	users    map[string]*User
	refresh  map[string]*RefreshToken
	oneTimes map[string]*OneTimeToken

	// failRevoke makes ReplacePassword fail before touching anything.
	failRevoke error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		users:    make(map[string]*User),
		refresh:  make(map[string]*RefreshToken),
		oneTimes: make(map[string]*OneTimeToken),
	}
}

// # Users

type memoryUsers struct{ db *memoryDB }

func (repository memoryUsers) find(match func(*User) bool) (*User, error) {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	for _, user := range repository.db.users {
		if match(user) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (repository memoryUsers) FindByID(_ context.Context, id string) (*User, error) {
	return repository.find(func(user *User) bool { return user.ID == id })
}

func (repository memoryUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	key := ident.UsernameKey(username)
	return repository.find(func(user *User) bool { return ident.UsernameKey(user.Username) == key })
}

func (repository memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	return repository.find(func(user *User) bool { return user.Email == email })
}

func (repository memoryUsers) ExistsByUsername(context context.Context, username string) (bool, error) {
	_, err := repository.FindByUsername(context, username)
	return err == nil, nil
}

func (repository memoryUsers) ExistsByEmail(context context.Context, email string) (bool, error) {
	_, err := repository.FindByEmail(context, email)
	return err == nil, nil
}

func (repository memoryUsers) Create(_ context.Context, user *User) error {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	for _, existing := range repository.db.users {
		if ident.UsernameKey(existing.Username) == ident.UsernameKey(user.Username) {
			return apperr.Conflict("Username is already taken")
		}
		if existing.Email == user.Email {
			return apperr.Conflict("Email is already registered")
		}
	}

	copied := *user
	repository.db.users[user.ID] = &copied
	return nil
}

func (repository memoryUsers) update(id string, apply func(*User)) error {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	user, ok := repository.db.users[id]
	if !ok {
		return apperr.NotFound("Account")
	}
	apply(user)
	return nil
}

func (repository memoryUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return repository.update(id, func(user *User) { user.LastLoginAt = &at })
}

func (repository memoryUsers) ReplacePassword(_ context.Context, id string, passwordHash string) (int64, error) {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	if repository.db.failRevoke != nil {
		return 0, repository.db.failRevoke
	}

	user, ok := repository.db.users[id]
	if !ok {
		return 0, apperr.NotFound("Account")
	}
	user.PasswordHash = passwordHash
	return repository.db.revokeAllLocked(id), nil
}

// # Refresh tokens

type memoryRefresh struct{ db *memoryDB }

func (repository memoryRefresh) Create(_ context.Context, token *RefreshToken) error {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	copied := *token
	repository.db.refresh[token.TokenHash] = &copied
	return nil
}

func (repository memoryRefresh) FindByHash(_ context.Context, tokenHash string) (*RefreshToken, error) {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	token, ok := repository.db.refresh[tokenHash]
	if !ok {
		return nil, ErrTokenInvalid
	}
	copied := *token
	return &copied, nil
}

func (repository memoryRefresh) Rotate(_ context.Context, currentHash string, next *RefreshToken, now time.Time) error {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	current, ok := repository.db.refresh[currentHash]
	switch {
	case !ok, current.UserID != next.UserID:
		return ErrTokenInvalid
	case current.IsRevoked:
		return ErrTokenRevoked
	case !now.Before(current.ExpiresAt):
		return ErrTokenExpired
	}

	current.IsRevoked = true
	current.ReplacedByHash = next.TokenHash
	copied := *next
	repository.db.refresh[next.TokenHash] = &copied
	return nil
}

func (repository memoryRefresh) RevokeAll(_ context.Context, userID string) (int64, error) {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()
	return repository.db.revokeAllLocked(userID), nil
}

func (db *memoryDB) revokeAllLocked(userID string) int64 {
	var count int64
	for _, token := range db.refresh {
		if token.UserID == userID && !token.IsRevoked {
			token.IsRevoked = true
			count++
		}
	}
	return count
}

func (repository memoryRefresh) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	var count int64
	for hash, token := range repository.db.refresh {
		if token.ExpiresAt.Before(before) {
			delete(repository.db.refresh, hash)
			count++
		}
	}
	return count, nil
}

// # Single-use tokens

type memoryOneTime struct{ db *memoryDB }

func (repository memoryOneTime) Create(_ context.Context, token *OneTimeToken) error {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	for hash, existing := range repository.db.oneTimes {
		if existing.UserID == token.UserID && existing.Kind == token.Kind && existing.UsedAt == nil {
			delete(repository.db.oneTimes, hash)
		}
	}
	copied := *token
	repository.db.oneTimes[token.TokenHash] = &copied
	return nil
}

func (repository memoryOneTime) Consume(_ context.Context, kind TokenKind, tokenHash string, now time.Time, effect TokenEffect) (*OneTimeToken, error) {
	repository.db.mu.Lock()
	defer repository.db.mu.Unlock()

	token, ok := repository.db.oneTimes[tokenHash]
	if !ok || token.Kind != kind {
		return nil, ErrTokenNotFound
	}
	if token.UsedAt != nil || !now.Before(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, ok := repository.db.users[token.UserID]
	if !ok {
		return nil, ErrTokenNotFound
	}

	switch kind {
	case KindVerifyEmail:
		user.IsEmailVerified = true
	case KindResetPassword:
		user.PasswordHash = effect.PasswordHash
		repository.db.revokeAllLocked(user.ID)
	case KindChangeEmail:
		for _, other := range repository.db.users {
			if other.ID != user.ID && other.Email == token.NewEmail {
				return nil, apperr.Conflict("Email is already registered")
			}
		}
		user.Email = token.NewEmail
		user.IsEmailVerified = true
	}

	token.UsedAt = &now
	copied := *token
	return &copied, nil
}

// # Notifier

type sentMail struct {
	template string
	to       mail.Recipient
	token    string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (notifier *recordingNotifier) record(template string, to mail.Recipient, token string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.sent = append(notifier.sent, sentMail{template: template, to: to, token: token})
	return nil
}

func (notifier *recordingNotifier) SendVerification(_ context.Context, to mail.Recipient, token string) error {
	return notifier.record(mail.TemplateVerifyEmail, to, token)
}

func (notifier *recordingNotifier) SendPasswordReset(_ context.Context, to mail.Recipient, token string) error {
	return notifier.record(mail.TemplateResetPassword, to, token)
}

func (notifier *recordingNotifier) SendEmailChange(_ context.Context, to mail.Recipient, token string) error {
	return notifier.record(mail.TemplateChangeEmail, to, token)
}

// last returns the most recent mail of a template, or nil.
func (notifier *recordingNotifier) last(template string) *sentMail {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	for index := len(notifier.sent) - 1; index >= 0; index-- {
		if notifier.sent[index].template == template {
			found := notifier.sent[index]
			return &found
		}
	}
	return nil
}

func (notifier *recordingNotifier) count(template string) int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	total := 0
	for _, sent := range notifier.sent {
		if sent.template == template {
			total++
		}
	}
	return total
}

// # Clock

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *testClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *testClock) Advance(duration time.Duration) {
	clock.mu.Lock()
	clock.now = clock.now.Add(duration)
	clock.mu.Unlock()
}
