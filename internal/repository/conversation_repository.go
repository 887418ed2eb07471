package repository

import (
	"context"
	"errors"
	"time"

	"github.com/brickly26/iMessage/internal/domain/conversation"
	apperrors "github.com/brickly26/iMessage/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrConflict
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, apperrors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&conversation.Conversation{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	var conversations []conversation.Conversation

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", subQuery).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrConflict
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Delete(&conversation.Participant{}, "conversation_id = ? AND user_id = ?", conversationID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var participants []conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	var p conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Participant{}, apperrors.ErrNotFound
		}
		return conversation.Participant{}, err
	}
	return p, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) DeleteParticipants(ctx context.Context, conversationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&conversation.Participant{}, "conversation_id = ?", conversationID).Error
}

func (r *PostgresConversationRepository) SetParticipantSeen(ctx context.Context, conversationID, userID uuid.UUID, seen bool) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("has_seen_latest_message", seen)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) MarkOthersUnseen(ctx context.Context, conversationID, senderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, senderID).
		Update("has_seen_latest_message", false).Error
}

func (r *PostgresConversationRepository) SetLatestMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"latest_message_id": messageID,
			"updated_at":        at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
