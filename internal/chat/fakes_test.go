// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/users/auth"
	"github.com/taibuivan/foundersbase/pkg/pagination"
)

// # Repository

type memoryRepository struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	pairs         map[[2]string]string
	messages      []Message
	users         *memoryUsers
}

func newMemoryRepository(users *memoryUsers) *memoryRepository {
	return &memoryRepository{
		conversations: make(map[string]*Conversation),
		pairs:         make(map[[2]string]string),
		users:         users,
	}
}

func (repository *memoryRepository) GetOrCreate(_ context.Context, id, user1ID, user2ID string, now time.Time) (*Conversation, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if user1ID >= user2ID {
		return nil, errors.New("pair not in canonical order")
	}

	key := [2]string{user1ID, user2ID}
	if existing, ok := repository.pairs[key]; ok {
		clone := *repository.conversations[existing]
		return &clone, nil
	}

	conversation := &Conversation{ID: id, User1ID: user1ID, User2ID: user2ID, CreatedAt: now, UpdatedAt: now}
	repository.conversations[id] = conversation
	repository.pairs[key] = id
	clone := *conversation
	return &clone, nil
}

func (repository *memoryRepository) FindByID(_ context.Context, id string) (*Conversation, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	conversation, ok := repository.conversations[id]
	if !ok {
		return nil, apperr.NotFound("Conversation")
	}
	clone := *conversation
	return &clone, nil
}

func (repository *memoryRepository) FindBetween(_ context.Context, user1ID, user2ID string) (*Conversation, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	id, ok := repository.pairs[[2]string{user1ID, user2ID}]
	if !ok {
		return nil, apperr.NotFound("Conversation")
	}
	clone := *repository.conversations[id]
	return &clone, nil
}

func (repository *memoryRepository) InsertMessage(_ context.Context, message *Message) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	conversation, ok := repository.conversations[message.ConversationID]
	if !ok {
		return apperr.NotFound("Conversation")
	}
	repository.messages = append(repository.messages, *message)
	if message.CreatedAt.After(conversation.UpdatedAt) {
		conversation.UpdatedAt = message.CreatedAt
	}
	return nil
}

func (repository *memoryRepository) ListForUser(ctx context.Context, userID string) ([]ConversationSummary, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	summaries := []ConversationSummary{}
	for _, conversation := range repository.conversations {
		if !conversation.Includes(userID) {
			continue
		}

		other, err := repository.users.FindByID(ctx, conversation.Other(userID))
		if err != nil {
			return nil, err
		}

		summary := ConversationSummary{ID: conversation.ID, Other: participantOf(other), UpdatedAt: conversation.UpdatedAt}
		for _, message := range repository.messages {
			if message.ConversationID != conversation.ID {
				continue
			}
			if summary.LastMessageAt == nil || !message.CreatedAt.Before(*summary.LastMessageAt) {
				at := message.CreatedAt
				summary.LastMessage, summary.LastMessageAt = message.Content, &at
			}
			if message.RecipientID == userID && message.ReadAt == nil {
				summary.UnreadCount++
			}
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt) })
	return summaries, nil
}

func (repository *memoryRepository) ListMessages(_ context.Context, conversationID string, cursor pagination.Cursor) ([]Message, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	var page []Message
	for index := len(repository.messages) - 1; index >= 0 && len(page) < cursor.Limit; index-- {
		message := repository.messages[index]
		if message.ConversationID != conversationID {
			continue
		}
		if cursor.HasBefore() && !message.CreatedAt.Before(cursor.Before) {
			continue
		}
		page = append(page, message)
	}
	slices.Reverse(page)
	return page, nil
}

func (repository *memoryRepository) MarkRead(_ context.Context, conversationID, readerID string, now time.Time) (int64, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	var stamped int64
	for index := range repository.messages {
		message := &repository.messages[index]
		if message.ConversationID == conversationID && message.RecipientID == readerID && message.ReadAt == nil {
			at := now
			message.ReadAt = &at
			stamped++
		}
	}
	return stamped, nil
}

func (repository *memoryRepository) CountUnread(_ context.Context, conversationID, recipientID string) (int, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	count := 0
	for _, message := range repository.messages {
		if message.ConversationID == conversationID && message.RecipientID == recipientID && message.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (repository *memoryRepository) conversationCount() int {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	return len(repository.conversations)
}

// # Users

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newMemoryUsers(users ...*auth.User) *memoryUsers {
	directory := &memoryUsers{users: make(map[string]*auth.User)}
	for _, user := range users {
		directory.users[user.ID] = user
	}
	return directory
}

func (directory *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	user, ok := directory.users[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *user
	return &clone, nil
}

func (directory *memoryUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	for _, user := range directory.users {
		if strings.EqualFold(user.Username, username) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

// # Pusher

type pushed struct {
	userID string
	event  Event
}

type recordingPusher struct {
	mu     sync.Mutex
	events []pushed
	err    error
}

func (pusher *recordingPusher) Push(_ context.Context, userID string, event Event) error {
	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	pusher.events = append(pusher.events, pushed{userID: userID, event: event})
	return pusher.err
}

func (pusher *recordingPusher) to(userID, eventType string) []Event {
	pusher.mu.Lock()
	defer pusher.mu.Unlock()

	var events []Event
	for _, entry := range pusher.events {
		if entry.userID == userID && entry.event.Type == eventType {
			events = append(events, entry.event)
		}
	}
	return events
}

// # Clock

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances by a millisecond per call so successive messages are strictly ordered.
func (clock *testClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(time.Millisecond)
	return clock.now
}
