// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/metrics"
	"github.com/taibuivan/foundersbase/internal/platform/validate"
	"github.com/taibuivan/foundersbase/internal/users/auth"
	"github.com/taibuivan/foundersbase/pkg/pagination"
	"github.com/taibuivan/foundersbase/pkg/uuid"
)

// # Service Layer

// Service implements conversation resolution, delivery and read state.
type Service struct {
	repository Repository
	users      UserDirectory
	pusher     Pusher
	sanitizer  *bluemonday.Policy
	clock      func() time.Time
	logger     *slog.Logger
}

// Option customises a [Service].
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(service *Service) { service.clock = clock }
}

// WithLogger sets the logger used for push failures.
func WithLogger(logger *slog.Logger) Option {
	return func(service *Service) { service.logger = logger }
}

// NewService constructs a new [Service]. A nil pusher disables realtime delivery.
func NewService(repository Repository, users UserDirectory, pusher Pusher, options ...Option) *Service {
	service := &Service{
		repository: repository,
		users:      users,
		pusher:     pusher,
		sanitizer:  bluemonday.StrictPolicy(),
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// # Conversations

/*
GetOrCreate resolves the single conversation between two users.

Description: Orientation does not matter. Concurrent calls from both sides
converge on one row through the unique pair constraint.

Parameters:
  - context: context.Context
  - userA, userB: string (User IDs)

Returns:
  - *Conversation: The shared conversation
  - error: VALIDATION_ERROR for a self-conversation, NOT_FOUND for unknown users
*/
func (service *Service) GetOrCreate(context context.Context, userA, userB string) (*Conversation, error) {
	if userA == userB {
		return nil, validate.RequiredError(FieldTo, "Cannot start a conversation with yourself")
	}

	// 1. Both participants must exist
	for _, id := range []string{userA, userB} {
		if _, err := service.users.FindByID(context, id); err != nil {
			return nil, service.userLookupError(err)
		}
	}

	return service.getOrCreate(context, userA, userB)
}

func (service *Service) getOrCreate(context context.Context, userA, userB string) (*Conversation, error) {
	user1, user2 := canonicalPair(userA, userB)

	conversation, err := service.repository.GetOrCreate(context, uuid.New(), user1, user2, service.clock())
	if err != nil {
		return nil, fmt.Errorf("chat_service_get_or_create_failed: %w", err)
	}
	return conversation, nil
}

/*
Ensure opens (or reuses) the conversation with otherUsername.

Parameters:
  - context: context.Context
  - meID: string
  - otherUsername: string

Returns:
  - *ConversationSummary: The conversation as it appears in the inbox
  - error: NOT_FOUND or VALIDATION_ERROR
*/
func (service *Service) Ensure(context context.Context, meID, otherUsername string) (*ConversationSummary, error) {
	other, err := service.resolve(context, otherUsername)
	if err != nil {
		return nil, err
	}

	if other.ID == meID {
		return nil, validate.RequiredError(FieldUsername, "Cannot start a conversation with yourself")
	}

	conversation, err := service.getOrCreate(context, meID, other.ID)
	if err != nil {
		return nil, err
	}

	unread, err := service.CountUnread(context, conversation.ID, meID)
	if err != nil {
		return nil, err
	}

	return &ConversationSummary{
		ID:          conversation.ID,
		Other:       participantOf(other),
		UpdatedAt:   conversation.UpdatedAt,
		UnreadCount: unread,
	}, nil
}

// ListConversations returns the inbox of userID ordered by most recent activity.
func (service *Service) ListConversations(context context.Context, userID string) ([]ConversationSummary, error) {
	summaries, err := service.repository.ListForUser(context, userID)
	if err != nil {
		return nil, fmt.Errorf("chat_service_list_conversations_failed: %w", err)
	}

	if summaries == nil {
		summaries = []ConversationSummary{}
	}
	return summaries, nil
}

// # Messages

/*
Send stores a message from senderID to recipientID and pushes it to both parties.

Description: Content is stripped of markup, kept as plain text and trimmed. The message is durable
before any push is attempted; push failures are logged and never returned.

Parameters:
  - context: context.Context
  - senderID: string
  - recipientID: string
  - content: string

Returns:
  - *MessageView: Stored message with both usernames
  - error: VALIDATION_ERROR, NOT_FOUND or storage failures
*/
func (service *Service) Send(context context.Context, senderID, recipientID, content string) (*MessageView, error) {

	// 1. Normalise and validate the body
	content = service.plainText(content)

	validator := &validate.Validator{}
	validator.Required(FieldContent, content).MaxLen(FieldContent, content, MaxContentLength)
	validator.NotSelf(FieldTo, senderID, recipientID)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// 2. Resolve both parties
	sender, err := service.users.FindByID(context, senderID)
	if err != nil {
		return nil, service.userLookupError(err)
	}

	recipient, err := service.users.FindByID(context, recipientID)
	if err != nil {
		return nil, service.userLookupError(err)
	}
	if !recipient.IsEnabled {
		return nil, apperr.NotFound("User")
	}

	// 3. Conversation, then the message
	conversation, err := service.getOrCreate(context, sender.ID, recipient.ID)
	if err != nil {
		return nil, err
	}

	message := Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		SenderID:       sender.ID,
		RecipientID:    recipient.ID,
		Content:        content,
		CreatedAt:      service.clock().UTC(),
	}

	if err := service.repository.InsertMessage(context, &message); err != nil {
		return nil, fmt.Errorf("chat_service_send_failed: %w", err)
	}
	metrics.ChatMessagesTotal.Inc()

	view := &MessageView{Message: message, Sender: sender.Username, Recipient: recipient.Username}

	// 4. Best-effort realtime delivery
	event := Event{Type: EventMessage, Message: view, ConversationID: conversation.ID}
	service.push(context, recipient.ID, event)
	service.push(context, sender.ID, event)

	return view, nil
}

// plainText drops markup and undoes the entity escaping the policy applies to
// the text it keeps. Clients escape on render.
func (service *Service) plainText(content string) string {
	return strings.TrimSpace(html.UnescapeString(service.sanitizer.Sanitize(content)))
}

// SendTo is [Service.Send] addressed by username.
func (service *Service) SendTo(context context.Context, senderID, toUsername, content string) (*MessageView, error) {
	recipient, err := service.resolve(context, toUsername)
	if err != nil {
		return nil, err
	}
	return service.Send(context, senderID, recipient.ID, content)
}

/*
ListMessages returns the history between two users, oldest first.

Description: A pair that never talked yields an empty list rather than an error.

Parameters:
  - context: context.Context
  - meID, otherID: string
  - cursor: pagination.Cursor

Returns:
  - []MessageView: The requested page
  - error: Storage failures
*/
func (service *Service) ListMessages(context context.Context, meID, otherID string, cursor pagination.Cursor) ([]MessageView, error) {
	me, err := service.users.FindByID(context, meID)
	if err != nil {
		return nil, service.userLookupError(err)
	}

	other, err := service.users.FindByID(context, otherID)
	if err != nil {
		return nil, service.userLookupError(err)
	}

	return service.listMessages(context, me, other, cursor)
}

// ListMessagesWith is [Service.ListMessages] addressed by username.
func (service *Service) ListMessagesWith(context context.Context, meID, otherUsername string, cursor pagination.Cursor) ([]MessageView, error) {
	me, err := service.users.FindByID(context, meID)
	if err != nil {
		return nil, service.userLookupError(err)
	}

	other, err := service.resolve(context, otherUsername)
	if err != nil {
		return nil, err
	}

	return service.listMessages(context, me, other, cursor)
}

func (service *Service) listMessages(context context.Context, me, other *auth.User, cursor pagination.Cursor) ([]MessageView, error) {
	if cursor.Limit <= 0 {
		cursor.Limit = pagination.DefaultLimit
	}

	user1, user2 := canonicalPair(me.ID, other.ID)
	conversation, err := service.repository.FindBetween(context, user1, user2)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return []MessageView{}, nil
		}
		return nil, fmt.Errorf("chat_service_list_messages_lookup_failed: %w", err)
	}

	messages, err := service.repository.ListMessages(context, conversation.ID, cursor)
	if err != nil {
		return nil, fmt.Errorf("chat_service_list_messages_failed: %w", err)
	}

	usernames := map[string]string{me.ID: me.Username, other.ID: other.Username}
	views := make([]MessageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, MessageView{
			Message:   message,
			Sender:    usernames[message.SenderID],
			Recipient: usernames[message.RecipientID],
		})
	}
	return views, nil
}

// # Read State

/*
MarkRead stamps every unread message addressed to readerID in the conversation.

Description: Idempotent. A second call finds nothing to stamp and pushes nothing.

Parameters:
  - context: context.Context
  - conversationID: string
  - readerID: string

Returns:
  - error: NOT_FOUND when the conversation is unknown or the reader is not a participant
*/
func (service *Service) MarkRead(context context.Context, conversationID, readerID string) error {
	conversation, err := service.repository.FindByID(context, conversationID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return err
		}
		return fmt.Errorf("chat_service_mark_read_lookup_failed: %w", err)
	}

	if !conversation.Includes(readerID) {
		return apperr.NotFound("Conversation")
	}

	return service.markRead(context, conversation, readerID)
}

// MarkReadWith is [Service.MarkRead] addressed by the other participant's username.
// A pair that never talked has nothing to mark.
func (service *Service) MarkReadWith(context context.Context, readerID, otherUsername string) error {
	other, err := service.resolve(context, otherUsername)
	if err != nil {
		return err
	}

	user1, user2 := canonicalPair(readerID, other.ID)
	conversation, err := service.repository.FindBetween(context, user1, user2)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil
		}
		return fmt.Errorf("chat_service_mark_read_lookup_failed: %w", err)
	}

	return service.markRead(context, conversation, readerID)
}

func (service *Service) markRead(context context.Context, conversation *Conversation, readerID string) error {
	now := service.clock().UTC()

	stamped, err := service.repository.MarkRead(context, conversation.ID, readerID, now)
	if err != nil {
		return fmt.Errorf("chat_service_mark_read_failed: %w", err)
	}

	if stamped > 0 {
		service.push(context, conversation.Other(readerID), Event{
			Type:           EventRead,
			ConversationID: conversation.ID,
			Reader:         readerID,
			ReadAt:         &now,
		})
	}
	return nil
}

// CountUnread counts messages in the conversation addressed to recipientID and not yet read.
func (service *Service) CountUnread(context context.Context, conversationID, recipientID string) (int, error) {
	count, err := service.repository.CountUnread(context, conversationID, recipientID)
	if err != nil {
		return 0, fmt.Errorf("chat_service_count_unread_failed: %w", err)
	}
	return count, nil
}

// # Helpers

// resolve finds an enabled account by username.
func (service *Service) resolve(context context.Context, username string) (*auth.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, validate.RequiredError(FieldUsername, "Username is required")
	}

	user, err := service.users.FindByUsername(context, username)
	if err != nil {
		return nil, service.userLookupError(err)
	}
	if !user.IsEnabled {
		return nil, apperr.NotFound("User")
	}
	return user, nil
}

func (service *Service) userLookupError(err error) error {
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return apperr.NotFound("User")
	}
	return fmt.Errorf("chat_service_user_lookup_failed: %w", err)
}

func (service *Service) push(context context.Context, userID string, event Event) {
	if service.pusher == nil {
		return
	}

	if err := service.pusher.Push(context, userID, event); err != nil {
		metrics.PushDroppedTotal.Inc()
		service.logger.WarnContext(context, "chat_push_failed",
			slog.String("user_id", userID),
			slog.String("type", event.Type),
			slog.Any("error", err),
		)
	}
}

func participantOf(user *auth.User) Participant {
	return Participant{ID: user.ID, Username: user.Username, DisplayName: user.DisplayName()}
}
