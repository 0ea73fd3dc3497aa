// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/database/schema"
	"github.com/taibuivan/foundersbase/internal/platform/dberr"
	"github.com/taibuivan/foundersbase/internal/platform/postgres"
	"github.com/taibuivan/foundersbase/internal/users/auth"
	"github.com/taibuivan/foundersbase/pkg/pagination"
)

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	db postgres.DB
}

// NewRepository creates a new PostgreSQL implementation of the chat Repository.
func NewRepository(db postgres.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var conversation Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.User1ID,
		&conversation.User2ID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// # Conversations

// GetOrCreate upserts the canonical pair. The no-op update makes RETURNING yield the existing row.
func (repository *PostgresRepository) GetOrCreate(context context.Context, id, user1ID, user2ID string, now time.Time) (*Conversation, error) {
	table := schema.ChatConversation
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (%s, %s) DO UPDATE SET %s = EXCLUDED.%s
		RETURNING %s`,
		table.Table, table.ID, table.User1ID, table.User2ID, table.CreatedAt, table.UpdatedAt,
		table.User1ID, table.User2ID, table.User1ID, table.User1ID,
		strings.Join(table.Columns(), ", "),
	)

	conversation, err := scanConversation(repository.db.QueryRow(context, query, id, user1ID, user2ID, now))
	if err != nil {
		return nil, fmt.Errorf("postgres_chat_repo_get_or_create_failed: %w", err)
	}
	return conversation, nil
}

func (repository *PostgresRepository) findOne(context context.Context, operation, where string, arguments ...any) (*Conversation, error) {
	table := schema.ChatConversation
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s`,
		strings.Join(table.Columns(), ", "), table.Table, where,
	)

	conversation, err := scanConversation(repository.db.QueryRow(context, query, arguments...))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Conversation")
		}
		return nil, fmt.Errorf("postgres_chat_repo_%s_failed: %w", operation, err)
	}
	return conversation, nil
}

// FindByID retrieves a conversation by primary key.
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*Conversation, error) {
	return repository.findOne(context, "find_by_id", schema.ChatConversation.ID+" = $1", id)
}

// FindBetween retrieves the conversation of a canonical pair.
func (repository *PostgresRepository) FindBetween(context context.Context, user1ID, user2ID string) (*Conversation, error) {
	table := schema.ChatConversation
	where := fmt.Sprintf("%s = $1 AND %s = $2", table.User1ID, table.User2ID)
	return repository.findOne(context, "find_between", where, user1ID, user2ID)
}

/*
ListForUser builds the inbox in one round trip.

The other participant is joined from the account table, the latest message
through a lateral subquery and the unread count through a correlated count.
*/
func (repository *PostgresRepository) ListForUser(context context.Context, userID string) ([]ConversationSummary, error) {
	query := `
		SELECT c.id, c.updatedat,
		       a.id, a.username, a.firstname, a.lastname,
		       last.content, last.createdat,
		       (SELECT COUNT(*) FROM chat.message u
		        WHERE u.conversationid = c.id AND u.recipientid = $1 AND u.readat IS NULL)
		FROM chat.conversation c
		JOIN users.account a
		  ON a.id = CASE WHEN c.user1id = $1 THEN c.user2id ELSE c.user1id END
		LEFT JOIN LATERAL (
		    SELECT m.content, m.createdat
		    FROM chat.message m
		    WHERE m.conversationid = c.id
		    ORDER BY m.createdat DESC, m.id DESC
		    LIMIT 1
		) last ON TRUE
		WHERE c.user1id = $1 OR c.user2id = $1
		ORDER BY c.updatedat DESC, c.id DESC`

	rows, err := repository.db.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_chat_repo_list_conversations_failed: %w", err)
	}
	defer rows.Close()

	summaries := []ConversationSummary{}
	for rows.Next() {
		var summary ConversationSummary
		var other auth.User
		var lastMessage *string

		err := rows.Scan(
			&summary.ID, &summary.UpdatedAt,
			&other.ID, &other.Username, &other.FirstName, &other.LastName,
			&lastMessage, &summary.LastMessageAt,
			&summary.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_chat_repo_scan_conversation_failed: %w", err)
		}

		if lastMessage != nil {
			summary.LastMessage = *lastMessage
		}
		summary.Other = participantOf(&other)
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_chat_repo_list_conversations_rows_failed: %w", err)
	}
	return summaries, nil
}

// # Messages

// InsertMessage stores the message and bumps the conversation in one transaction.
func (repository *PostgresRepository) InsertMessage(context context.Context, message *Message) error {
	messages := schema.ChatMessage
	conversations := schema.ChatConversation

	insert := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		messages.Table,
		messages.ID, messages.ConversationID, messages.SenderID, messages.RecipientID, messages.Content, messages.CreatedAt,
	)

	// updatedat never moves backwards.
	bump := fmt.Sprintf(`
		UPDATE %s
		SET %s = GREATEST(%s, $2)
		WHERE %s = $1`,
		conversations.Table,
		conversations.UpdatedAt, conversations.UpdatedAt,
		conversations.ID,
	)

	return postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(context, insert,
			message.ID, message.ConversationID, message.SenderID, message.RecipientID, message.Content, message.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres_chat_repo_insert_message_failed: %w", err)
		}

		tag, err := tx.Exec(context, bump, message.ConversationID, message.CreatedAt)
		if err != nil {
			return fmt.Errorf("postgres_chat_repo_bump_conversation_failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Conversation")
		}
		return nil
	})
}

// ListMessages reads the newest page before the cursor and returns it oldest first.
func (repository *PostgresRepository) ListMessages(context context.Context, conversationID string, cursor pagination.Cursor) ([]Message, error) {
	table := schema.ChatMessage

	arguments := []any{conversationID, cursor.Limit}
	where := table.ConversationID + " = $1"
	if cursor.HasBefore() {
		where += fmt.Sprintf(" AND %s < $3", table.CreatedAt)
		arguments = append(arguments, cursor.Before)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY %s DESC, %s DESC
		LIMIT $2`,
		strings.Join(table.Columns(), ", "), table.Table,
		where,
		table.CreatedAt, table.ID,
	)

	rows, err := repository.db.Query(context, query, arguments...)
	if err != nil {
		return nil, fmt.Errorf("postgres_chat_repo_list_messages_failed: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var message Message
		err := rows.Scan(
			&message.ID, &message.ConversationID, &message.SenderID, &message.RecipientID,
			&message.Content, &message.CreatedAt, &message.ReadAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_chat_repo_scan_message_failed: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_chat_repo_list_messages_rows_failed: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

// MarkRead stamps unread messages addressed to the reader. Already-read rows are untouched.
func (repository *PostgresRepository) MarkRead(context context.Context, conversationID, readerID string, now time.Time) (int64, error) {
	table := schema.ChatMessage
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $3
		WHERE %s = $1 AND %s = $2 AND %s IS NULL`,
		table.Table,
		table.ReadAt,
		table.ConversationID, table.RecipientID, table.ReadAt,
	)

	tag, err := repository.db.Exec(context, query, conversationID, readerID, now)
	if err != nil {
		return 0, fmt.Errorf("postgres_chat_repo_mark_read_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountUnread counts unread messages addressed to the recipient.
func (repository *PostgresRepository) CountUnread(context context.Context, conversationID, recipientID string) (int, error) {
	table := schema.ChatMessage
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s
		WHERE %s = $1 AND %s = $2 AND %s IS NULL`,
		table.Table,
		table.ConversationID, table.RecipientID, table.ReadAt,
	)

	var count int
	if err := repository.db.QueryRow(context, query, conversationID, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_chat_repo_count_unread_failed: %w", err)
	}
	return count, nil
}
