package types

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one element of a conversation's append-only sequence. For
// assistant messages Metadata carries the full structured agent output, or an
// error descriptor when generation failed.
type Message struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Conversation is the persisted document: one per thread, owned by exactly
// one user. UserUUID and CreatedAt never change after creation.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	UserUUID       string    `json:"user_uuid"`
	ThreadName     string    `json:"thread_name"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConversationSummary is the listing shape: no message bodies beyond a
// truncated preview of the most recent one.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	ThreadName     string    `json:"thread_name"`
	MessageCount   int       `json:"message_count"`
	LastMessage    string    `json:"last_message"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type UserStats struct {
	UserUUID           string     `json:"user_uuid"`
	TotalConversations int        `json:"total_conversations"`
	TotalMessages      int        `json:"total_messages"`
	MostRecentActivity *time.Time `json:"most_recent_activity"`
}
