package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/repository"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"

	"github.com/google/uuid"
)

// UserService covers username claiming and the two directory searches.
// Search results carry viewer-relative relationship labels so clients can
// render the right action button without a second round trip.
type UserService struct {
	repo        repository.UserRepository
	friendships *FriendshipService
	log         *logger.Logger
	timeout     time.Duration
}

func NewUserService(repo repository.UserRepository, friendships *FriendshipService, log *logger.Logger, timeout time.Duration) *UserService {
	return &UserService{repo: repo, friendships: friendships, log: log, timeout: timeout}
}

func (s *UserService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ClaimUsername sets the viewer's username. Usernames are unique; a taken
// name is rejected even when the viewer already holds it elsewhere.
func (s *UserService) ClaimUsername(ctx context.Context, userID uuid.UUID, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username must not be empty", apperrors.ErrInvalidArgument)
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	if err == nil && existing.ID != userID {
		return apperrors.ErrUsernameTaken
	}

	if err := s.repo.ClaimUsername(ctx, userID, username); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("claim username: %w", err)
	}
	return nil
}

// SearchUsers finds users whose username contains query, excluding the
// viewer, each annotated with the viewer's relationship to them.
func (s *UserService) SearchUsers(ctx context.Context, viewerID uuid.UUID, query string) ([]UserProjection, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	matches, err := s.repo.SearchByUsername(ctx, viewerID, query)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(matches))
	for _, u := range matches {
		ids = append(ids, u.ID)
	}
	labels := map[uuid.UUID]friendship.Label{}
	if s.friendships != nil {
		labels, err = s.friendships.RelationshipLabels(ctx, viewerID, ids)
		if err != nil {
			return nil, fmt.Errorf("annotate results: %w", err)
		}
	}

	out := make([]UserProjection, 0, len(matches))
	for _, u := range matches {
		out = append(out, UserProjection{
			ID:           u.ID,
			Username:     u.Username.String,
			Relationship: labels[u.ID],
		})
	}
	return out, nil
}

// SearchFriends is SearchUsers restricted to accepted friends. Used when
// picking conversation participants.
func (s *UserService) SearchFriends(ctx context.Context, viewerID uuid.UUID, query string) ([]UserProjection, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	friendIDs, err := s.friendships.FriendIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	if len(friendIDs) == 0 {
		return []UserProjection{}, nil
	}

	friendSet := make(map[uuid.UUID]struct{}, len(friendIDs))
	for _, id := range friendIDs {
		friendSet[id] = struct{}{}
	}

	users, err := s.repo.GetByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]UserProjection, 0, len(users))
	for _, u := range users {
		if _, ok := friendSet[u.ID]; !ok {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(u.Username.String), query) {
			continue
		}
		out = append(out, UserProjection{
			ID:           u.ID,
			Username:     u.Username.String,
			Relationship: friendship.LabelAccepted,
		})
	}
	return out, nil
}
