package types

import (
	"time"

	"gorm.io/datatypes"
)

// ConversationRecord is the database row backing a conversation when the
// store runs on sqlite/postgres instead of the filesystem. Messages holds
// the ordered []Message as a JSON column.
type ConversationRecord struct {
	ID         string         `gorm:"primaryKey" json:"conversation_id"`
	UserUUID   string         `gorm:"index:idx_conversation_user;not null" json:"user_uuid"`
	ThreadName string         `gorm:"not null" json:"thread_name"`
	Messages   datatypes.JSON `gorm:"column:messages" json:"messages"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (ConversationRecord) TableName() string { return "conversation" }
