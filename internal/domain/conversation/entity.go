package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table.
// LatestMessageID is a weak back-reference: the conversation never owns the
// message it points at, and the pointer is cleared by the message cascade.
type Conversation struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey"`
	LatestMessageID uuid.NullUUID `gorm:"type:uuid"`
	CreatedAt       time.Time     `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time     `gorm:"default:CURRENT_TIMESTAMP;index:idx_conversations_updated,sort:desc"`

	// Relationships
	Participants []Participant `gorm:"foreignKey:ConversationID"`
}

// Participant represents the participants table.
// One row per (conversation, user) pair; carries the per-user read state.
type Participant struct {
	ConversationID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID               uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_participants_user"`
	HasSeenLatestMessage bool      `gorm:"not null;default:false"`
	CreatedAt            time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

// ParticipantIDs returns the user ids of the loaded participant set.
func (c Conversation) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasParticipant reports whether userID is in the loaded participant set.
func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
