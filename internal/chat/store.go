// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"time"

	"github.com/taibuivan/foundersbase/internal/users/auth"
	"github.com/taibuivan/foundersbase/pkg/pagination"
)

// # Repository Contracts

// Repository persists conversations and messages.
type Repository interface {
	/*
		GetOrCreate returns the conversation of the pair, creating it with id when absent.

		Parameters:
		  - context: context.Context
		  - id: string (Used only when a row is inserted)
		  - user1ID, user2ID: string (Canonical order, user1ID < user2ID)
		  - now: time.Time

		Returns:
		  - *Conversation: The single row for the pair
		  - error: Storage failures
	*/
	GetOrCreate(context context.Context, id, user1ID, user2ID string, now time.Time) (*Conversation, error)

	// FindByID returns apperr.NotFound when the conversation does not exist.
	FindByID(context context.Context, id string) (*Conversation, error)

	// FindBetween looks up the pair in canonical order. apperr.NotFound when absent.
	FindBetween(context context.Context, user1ID, user2ID string) (*Conversation, error)

	// InsertMessage stores the message and bumps the conversation's updated-at atomically.
	InsertMessage(context context.Context, message *Message) error

	// ListForUser returns the user's conversations, most recent activity first.
	ListForUser(context context.Context, userID string) ([]ConversationSummary, error)

	// ListMessages returns a page of the conversation, oldest first.
	ListMessages(context context.Context, conversationID string, cursor pagination.Cursor) ([]Message, error)

	// MarkRead stamps every unread message addressed to readerID. Returns the number stamped.
	MarkRead(context context.Context, conversationID, readerID string, now time.Time) (int64, error)

	// CountUnread counts messages addressed to recipientID with no read time.
	CountUnread(context context.Context, conversationID, recipientID string) (int, error)
}

// UserDirectory resolves chat participants.
type UserDirectory interface {
	FindByID(context context.Context, id string) (*auth.User, error)
	FindByUsername(context context.Context, username string) (*auth.User, error)
}

// Pusher delivers an event to every live connection of a user.
type Pusher interface {
	Push(context context.Context, userID string, event Event) error
}

// canonicalPair orders two user ids the way conversations are stored.
func canonicalPair(userA, userB string) (string, string) {
	if userA < userB {
		return userA, userB
	}
	return userB, userA
}
