package repository

import (
	"context"
	"errors"
	"time"

	"github.com/brickly26/iMessage/internal/domain/friendship"
	apperrors "github.com/brickly26/iMessage/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresFriendshipRepository struct {
	db *gorm.DB
}

func NewFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &PostgresFriendshipRepository{db: db}
}

func (r *PostgresFriendshipRepository) CreateRequest(ctx context.Context, req *friendship.FriendRequest) error {
	res := r.db.WithContext(ctx).Create(req)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateRequest
		}
		return res.Error
	}
	return nil
}

func (r *PostgresFriendshipRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (friendship.FriendRequest, error) {
	var req friendship.FriendRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return friendship.FriendRequest{}, apperrors.ErrNotFound
		}
		return friendship.FriendRequest{}, err
	}
	return req, nil
}

func (r *PostgresFriendshipRepository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status friendship.RequestStatus) error {
	res := r.db.WithContext(ctx).
		Model(&friendship.FriendRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresFriendshipRepository) GetActiveRequestBetween(ctx context.Context, userA, userB uuid.UUID) (friendship.FriendRequest, error) {
	var req friendship.FriendRequest
	err := r.db.WithContext(ctx).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND status IN ?",
			userA, userB, userB, userA,
			[]friendship.RequestStatus{friendship.StatusPending, friendship.StatusAccepted}).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return friendship.FriendRequest{}, apperrors.ErrNotFound
		}
		return friendship.FriendRequest{}, err
	}
	return req, nil
}

func (r *PostgresFriendshipRepository) ListPendingReceived(ctx context.Context, userID uuid.UUID) ([]friendship.FriendRequest, error) {
	var requests []friendship.FriendRequest
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, friendship.StatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *PostgresFriendshipRepository) ListRequestsTouching(ctx context.Context, viewerID uuid.UUID, subjectIDs []uuid.UUID) ([]friendship.FriendRequest, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	var requests []friendship.FriendRequest
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id IN ?) OR (receiver_id = ? AND sender_id IN ?)",
			viewerID, subjectIDs, viewerID, subjectIDs).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *PostgresFriendshipRepository) CreateEdge(ctx context.Context, userA, userB uuid.UUID) error {
	now := time.Now()
	edges := []friendship.Friendship{
		{UserID: userA, FriendID: userB, CreatedAt: now},
		{UserID: userB, FriendID: userA, CreatedAt: now},
	}
	res := r.db.WithContext(ctx).Create(&edges)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrAlreadyFriends
		}
		return res.Error
	}
	return nil
}

func (r *PostgresFriendshipRepository) EdgeExists(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&friendship.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userA, userB).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresFriendshipRepository) ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&friendship.Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
