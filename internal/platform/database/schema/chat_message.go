// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// ChatMessageTable represents the 'chat.message' table
type ChatMessageTable struct {
	Table          string
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	Content        string
	CreatedAt      string
	ReadAt         string
}

// ChatMessage is the schema definition for chat.message
var ChatMessage = ChatMessageTable{
	Table:          "chat.message",
	ID:             "id",
	ConversationID: "conversationid",
	SenderID:       "senderid",
	RecipientID:    "recipientid",
	Content:        "content",
	CreatedAt:      "createdat",
	ReadAt:         "readat",
}

// Columns returns all standard column names
func (t ChatMessageTable) Columns() []string {
	return []string{t.ID, t.ConversationID, t.SenderID, t.RecipientID, t.Content, t.CreatedAt, t.ReadAt}
}
