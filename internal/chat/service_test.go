// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/users/auth"
	"github.com/taibuivan/foundersbase/pkg/pagination"
)

const (
	aliceID = "0190a0b0-0000-7000-8000-000000000001"
	bobID   = "0190a0b0-0000-7000-8000-000000000002"
	carolID = "0190a0b0-0000-7000-8000-000000000003"
	daveID  = "0190a0b0-0000-7000-8000-000000000004"
)

type harness struct {
	service    *Service
	repository *memoryRepository
	users      *memoryUsers
	pusher     *recordingPusher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	users := newMemoryUsers(
		&auth.User{ID: aliceID, Username: "alice", FirstName: "Alice", LastName: "Liddell", IsEnabled: true},
		&auth.User{ID: bobID, Username: "bob", FirstName: "Bob", IsEnabled: true},
		&auth.User{ID: carolID, Username: "carol", IsEnabled: true},
		&auth.User{ID: daveID, Username: "dave", IsEnabled: false},
	)
	repository := newMemoryRepository(users)
	pusher := &recordingPusher{}
	clock := &testClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}

	service := NewService(repository, users, pusher,
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	return &harness{service: service, repository: repository, users: users, pusher: pusher}
}

func unreadFor(t *testing.T, h *harness, recipientID, otherID string) int {
	t.Helper()
	conversation, err := h.service.GetOrCreate(context.Background(), recipientID, otherID)
	require.NoError(t, err)
	count, err := h.service.CountUnread(context.Background(), conversation.ID, recipientID)
	require.NoError(t, err)
	return count
}

func TestGetOrCreate_OrientationIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.GetOrCreate(ctx, bobID, aliceID)
	require.NoError(t, err)
	second, err := h.service.GetOrCreate(ctx, aliceID, bobID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, aliceID, first.User1ID, "pair is stored in canonical order")
	assert.Equal(t, bobID, first.User2ID)
	assert.Equal(t, 1, h.repository.conversationCount())
}

func TestGetOrCreate_ConcurrentFromBothSides(t *testing.T) {
	h := newHarness(t)

	const callers = 32
	ids := make([]string, callers)
	var wg sync.WaitGroup

	for index := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userA, userB := aliceID, carolID
			if index%2 == 1 {
				userA, userB = carolID, aliceID
			}
			conversation, err := h.service.GetOrCreate(context.Background(), userA, userB)
			if assert.NoError(t, err) {
				ids[index] = conversation.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, h.repository.conversationCount())
}

func TestGetOrCreate_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.GetOrCreate(ctx, aliceID, aliceID)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = h.service.GetOrCreate(ctx, aliceID, "0190a0b0-0000-7000-8000-0000000000ff")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestScenario_HiTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Send(ctx, aliceID, bobID, "hi")
	require.NoError(t, err)
	_, err = h.service.Send(ctx, aliceID, bobID, "hi")
	require.NoError(t, err)

	inbox, err := h.service.ListConversations(ctx, aliceID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "hi", inbox[0].LastMessage)
	assert.Equal(t, "bob", inbox[0].Other.Username)
	assert.Equal(t, 0, inbox[0].UnreadCount, "the sender has nothing unread")

	assert.Equal(t, 2, unreadFor(t, h, bobID, aliceID))

	conversation, err := h.service.GetOrCreate(ctx, bobID, aliceID)
	require.NoError(t, err)
	require.NoError(t, h.service.MarkRead(ctx, conversation.ID, bobID))
	assert.Equal(t, 0, unreadFor(t, h, bobID, aliceID))
}

func TestSend_OrientationAndPush(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.service.Send(ctx, aliceID, bobID, "  <b>hello</b> bob  ")
	require.NoError(t, err)
	assert.Equal(t, "hello bob", view.Content)
	assert.Equal(t, "alice", view.Sender)
	assert.Equal(t, "bob", view.Recipient)

	// Both sides see the same orientation.
	for _, pair := range [][2]string{{aliceID, bobID}, {bobID, aliceID}} {
		messages, err := h.service.ListMessages(ctx, pair[0], pair[1], pagination.Cursor{Limit: 10})
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, aliceID, messages[0].SenderID)
		assert.Equal(t, bobID, messages[0].RecipientID)
		assert.Equal(t, "alice", messages[0].Sender)
	}

	// Recipient and sender's own sessions are notified.
	require.Len(t, h.pusher.to(bobID, EventMessage), 1)
	require.Len(t, h.pusher.to(aliceID, EventMessage), 1)
	assert.Equal(t, view.ID, h.pusher.to(bobID, EventMessage)[0].Message.ID)
}

func TestSend_PushFailureIsNotAnError(t *testing.T) {
	h := newHarness(t)
	h.pusher.err = errors.New("recipient offline")

	view, err := h.service.Send(context.Background(), aliceID, bobID, "still stored")
	require.NoError(t, err)

	messages, err := h.service.ListMessages(context.Background(), bobID, aliceID, pagination.Cursor{Limit: 10})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, view.ID, messages[0].ID)
}

func TestSend_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		recipientID string
		content     string
		code        string
	}{
		{"empty", bobID, "   ", apperr.CodeValidation},
		{"markup only", bobID, "<script></script>", apperr.CodeValidation},
		{"too long", bobID, strings.Repeat("x", MaxContentLength+1), apperr.CodeValidation},
		{"self", aliceID, "hi me", apperr.CodeValidation},
		{"unknown recipient", "0190a0b0-0000-7000-8000-0000000000ff", "hi", apperr.CodeNotFound},
		{"disabled recipient", daveID, "hi", apperr.CodeNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := h.service.Send(ctx, aliceID, test.recipientID, test.content)
			assert.True(t, apperr.HasCode(err, test.code), "got %v", err)
		})
	}

	_, err := h.service.Send(ctx, aliceID, bobID, strings.Repeat("é", MaxContentLength))
	assert.NoError(t, err, "length is counted in characters")
}

func TestSend_KeepsPlainTextVerbatim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, content := range []string{"don't", "Tom & Jerry", "2 < 3", `she said "hi"`} {
		view, err := h.service.Send(ctx, aliceID, bobID, content)
		require.NoError(t, err)
		assert.Equal(t, content, view.Content)
	}

	messages, err := h.service.ListMessages(ctx, bobID, aliceID, pagination.Cursor{Limit: 10})
	require.NoError(t, err)
	require.Len(t, messages, 4)
	stored := make([]string, 0, len(messages))
	for _, message := range messages {
		stored = append(stored, message.Content)
	}
	assert.ElementsMatch(t, []string{"don't", "Tom & Jerry", "2 < 3", `she said "hi"`}, stored)
	assert.Equal(t, "Tom & Jerry", h.pusher.to(bobID, EventMessage)[1].Message.Content)

	_, err = h.service.Send(ctx, aliceID, bobID, strings.Repeat("&", MaxContentLength))
	assert.NoError(t, err, "length is counted on the stored text")
}

func TestListMessages_EmptyAndPaged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	messages, err := h.service.ListMessages(ctx, aliceID, carolID, pagination.Cursor{Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
	assert.Equal(t, 0, h.repository.conversationCount(), "listing never creates a conversation")

	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := h.service.Send(ctx, aliceID, carolID, content)
		require.NoError(t, err)
	}

	latest, err := h.service.ListMessages(ctx, carolID, aliceID, pagination.Cursor{Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "three", latest[0].Content)
	assert.Equal(t, "four", latest[1].Content)

	older, err := h.service.ListMessagesWith(ctx, carolID, "ALICE", pagination.Cursor{Limit: 2, Before: latest[0].CreatedAt})
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "one", older[0].Content)
	assert.Equal(t, "two", older[1].Content)
}

func TestMarkRead_IdempotentAndGuarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.service.Send(ctx, aliceID, bobID, "ping")
	require.NoError(t, err)

	// A third party cannot touch the conversation.
	err = h.service.MarkRead(ctx, view.ConversationID, carolID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	err = h.service.MarkRead(ctx, "0190a0b0-0000-7000-8000-0000000000ee", bobID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	// The sender marking read does not clear the recipient's unread.
	require.NoError(t, h.service.MarkRead(ctx, view.ConversationID, aliceID))
	assert.Equal(t, 1, unreadFor(t, h, bobID, aliceID))

	require.NoError(t, h.service.MarkRead(ctx, view.ConversationID, bobID))
	require.NoError(t, h.service.MarkRead(ctx, view.ConversationID, bobID))
	assert.Equal(t, 0, unreadFor(t, h, bobID, aliceID))

	reads := h.pusher.to(aliceID, EventRead)
	require.Len(t, reads, 1, "only the call that stamped something notifies")
	assert.Equal(t, bobID, reads[0].Reader)
}

func TestMarkReadWith_UnknownPairIsNoop(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.service.MarkReadWith(context.Background(), aliceID, "carol"))
	assert.Equal(t, 0, h.repository.conversationCount())

	err := h.service.MarkReadWith(context.Background(), aliceID, "nobody")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestEnsure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	summary, err := h.service.Ensure(ctx, aliceID, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", summary.Other.Username)
	assert.Equal(t, "Bob", summary.Other.DisplayName)
	assert.Equal(t, 0, summary.UnreadCount)

	again, err := h.service.Ensure(ctx, aliceID, "bob")
	require.NoError(t, err)
	assert.Equal(t, summary.ID, again.ID)

	_, err = h.service.Ensure(ctx, aliceID, "alice")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = h.service.Ensure(ctx, aliceID, "dave")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	inbox, err := h.service.ListConversations(ctx, bobID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Empty(t, inbox[0].LastMessage)
	assert.Nil(t, inbox[0].LastMessageAt)
}

func TestListConversations_RecencyOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Send(ctx, aliceID, bobID, "to bob")
	require.NoError(t, err)
	_, err = h.service.Send(ctx, carolID, aliceID, "from carol")
	require.NoError(t, err)

	inbox, err := h.service.ListConversations(ctx, aliceID)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "carol", inbox[0].Other.Username)
	assert.Equal(t, 1, inbox[0].UnreadCount)
	assert.Equal(t, "bob", inbox[1].Other.Username)

	_, err = h.service.SendTo(ctx, aliceID, "bob", "bump")
	require.NoError(t, err)

	inbox, err = h.service.ListConversations(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, "bob", inbox[0].Other.Username)
	assert.Equal(t, "bump", inbox[0].LastMessage)
}
