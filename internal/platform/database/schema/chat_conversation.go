// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// ChatConversationTable represents the 'chat.conversation' table
type ChatConversationTable struct {
	Table     string
	ID        string
	User1ID   string
	User2ID   string
	CreatedAt string
	UpdatedAt string
}

// ChatConversation is the schema definition for chat.conversation
var ChatConversation = ChatConversationTable{
	Table:     "chat.conversation",
	ID:        "id",
	User1ID:   "user1id",
	User2ID:   "user2id",
	CreatedAt: "createdat",
	UpdatedAt: "updatedat",
}

// Columns returns all standard column names
func (t ChatConversationTable) Columns() []string {
	return []string{t.ID, t.User1ID, t.User2ID, t.CreatedAt, t.UpdatedAt}
}
