// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package chat implements one-to-one direct messaging.

# Architecture

  - Conversation: exactly one per unordered pair of users, stored in canonical
    order (user1id < user2id) so both orientations resolve to the same row.
  - Message: belongs to one conversation, carries sender and recipient, and is
    only ever mutated to stamp its read time.
  - Realtime: after a message is durably stored it is pushed to the live
    connections of both parties. Push is best-effort; offline users see the
    message on their next fetch.
*/
package chat

import (
	"time"
)

// # Limits

// MaxContentLength bounds a message body, counted in runes after sanitising.
const MaxContentLength = 4000

// # Domain Entities

// Conversation is the unique channel between two users.
type Conversation struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1_id"`
	User2ID   string    `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Includes reports whether userID is one of the two participants.
func (conversation *Conversation) Includes(userID string) bool {
	return conversation.User1ID == userID || conversation.User2ID == userID
}

// Other returns the participant that is not userID.
func (conversation *Conversation) Other(userID string) string {
	if conversation.User1ID == userID {
		return conversation.User2ID
	}
	return conversation.User1ID
}

// Message is a single direct message.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	RecipientID    string     `json:"recipient_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// Participant is the public view of a conversation member.
type Participant struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// ConversationSummary is one row of the inbox.
type ConversationSummary struct {
	ID            string      `json:"id"`
	Other         Participant `json:"other"`
	UpdatedAt     time.Time   `json:"updated_at"`
	LastMessage   string      `json:"last_message,omitempty"`
	LastMessageAt *time.Time  `json:"last_message_at,omitempty"`
	UnreadCount   int         `json:"unread_count"`
}

// MessageView is a message annotated with the usernames of both ends.
type MessageView struct {
	Message
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
}

// # Realtime Events

// Event types exchanged over the websocket.
const (
	EventMessage = "message"
	EventAck     = "ack"
	EventRead    = "read"
	EventError   = "error"
	EventSend    = "send"
)

// Event is the envelope pushed to clients.
type Event struct {
	Type           string       `json:"type"`
	Message        *MessageView `json:"message,omitempty"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Reader         string       `json:"reader,omitempty"`
	ReadAt         *time.Time   `json:"read_at,omitempty"`
	Code           string       `json:"code,omitempty"`
	Error          string       `json:"error,omitempty"`
	Ref            string       `json:"ref,omitempty"`
}

// # Field Identifiers

const (
	FieldTo       = "to"
	FieldContent  = "content"
	FieldUsername = "username"
)
