package message

import (
	"time"

	"github.com/google/uuid"
)

// Message represents the messages table. Rows are immutable once created;
// they only disappear through the conversation delete cascade.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	Body           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_messages_conversation_created,priority:2,sort:desc"`
}

func (Message) TableName() string {
	return "messages"
}
