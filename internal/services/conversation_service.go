package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brickly26/iMessage/internal/domain/conversation"
	"github.com/brickly26/iMessage/internal/events"
	"github.com/brickly26/iMessage/internal/repository"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationService creates conversations, manages participant
// membership and read state, and is the only writer of the participants
// table. Events are published strictly after the owning transaction
// commits; a failed or timed-out transaction publishes nothing.
type ConversationService struct {
	db       *gorm.DB
	repo     repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	pub      events.Publisher
	log      *logger.Logger
	timeout  time.Duration
}

func NewConversationService(db *gorm.DB, repo repository.ConversationRepository, msgRepo repository.MessageRepository, userRepo repository.UserRepository, pub events.Publisher, log *logger.Logger, timeout time.Duration) *ConversationService {
	return &ConversationService{db: db, repo: repo, msgRepo: msgRepo, userRepo: userRepo, pub: pub, log: log, timeout: timeout}
}

func (s *ConversationService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *ConversationService) inTx(ctx context.Context, fn func(repo repository.ConversationRepository, msgRepo repository.MessageRepository) error) error {
	if s.db == nil {
		return fn(s.repo, s.msgRepo)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repository.NewConversationRepository(tx), repository.NewMessageRepository(tx))
	})
}

// Create starts a conversation with the given participant set. The
// initiator is added when absent and starts with the latest message seen;
// everyone else starts unseen. A conversation containing only the
// initiator is allowed: it persists fine and simply has no external
// recipient until participants are added.
func (s *ConversationService) Create(ctx context.Context, initiatorID uuid.UUID, participantIDs []uuid.UUID) (conversation.Conversation, error) {
	ids := dedupeIDs(append([]uuid.UUID{initiatorID}, participantIDs...))

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	now := time.Now()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.inTx(ctx, func(repo repository.ConversationRepository, _ repository.MessageRepository) error {
		if err := repo.Create(ctx, &conv); err != nil {
			return err
		}
		for _, userID := range ids {
			p := conversation.Participant{
				ConversationID:       conv.ID,
				UserID:               userID,
				HasSeenLatestMessage: userID == initiatorID,
				CreatedAt:            now,
			}
			if err := repo.AddParticipant(ctx, &p); err != nil {
				return err
			}
			conv.Participants = append(conv.Participants, p)
		}
		return nil
	})
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	if s.pub != nil {
		s.pub.Publish(events.TopicConversationCreated, &events.ConversationCreated{
			Conversation: conversationView(ctx, conv, s.userRepo, s.msgRepo),
		})
	}
	return conv, nil
}

// FindExistingConversation returns a conversation of the viewer whose
// non-viewer participant set equals candidateIDs exactly, regardless of
// order. Subsets and supersets do not match.
func (s *ConversationService) FindExistingConversation(ctx context.Context, viewerID uuid.UUID, candidateIDs []uuid.UUID) (conversation.Conversation, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	want := make(map[uuid.UUID]struct{})
	for _, id := range dedupeIDs(candidateIDs) {
		if id != viewerID {
			want[id] = struct{}{}
		}
	}

	conversations, err := s.repo.GetUserConversations(ctx, viewerID)
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("list conversations: %w", err)
	}

	for _, conv := range conversations {
		others := make(map[uuid.UUID]struct{})
		for _, p := range conv.Participants {
			if p.UserID != viewerID {
				others[p.UserID] = struct{}{}
			}
		}
		if len(others) != len(want) {
			continue
		}
		match := true
		for id := range want {
			if _, ok := others[id]; !ok {
				match = false
				break
			}
		}
		if match {
			return conv, nil
		}
	}
	return conversation.Conversation{}, apperrors.ErrNotFound
}

// UpdateParticipants reconciles the stored participant set with
// newParticipantIDs: the symmetric difference is taken against the
// current stored set, removed users lose their rows and added users get
// fresh unseen rows, all in one transaction. An empty resulting set
// deletes the conversation outright (with its messages) and publishes
// ConversationDeleted instead of ConversationUpdated.
func (s *ConversationService) UpdateParticipants(ctx context.Context, conversationID uuid.UUID, newParticipantIDs []uuid.UUID) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	newSet := make(map[uuid.UUID]struct{})
	for _, id := range dedupeIDs(newParticipantIDs) {
		newSet[id] = struct{}{}
	}
	current := make(map[uuid.UUID]struct{}, len(conv.Participants))
	for _, p := range conv.Participants {
		current[p.UserID] = struct{}{}
	}

	var addedIDs, removedIDs []uuid.UUID
	for id := range newSet {
		if _, ok := current[id]; !ok {
			addedIDs = append(addedIDs, id)
		}
	}
	for id := range current {
		if _, ok := newSet[id]; !ok {
			removedIDs = append(removedIDs, id)
		}
	}

	if len(newSet) == 0 {
		return s.Delete(ctx, conversationID)
	}
	if len(addedIDs) == 0 && len(removedIDs) == 0 {
		return nil
	}

	now := time.Now()
	err = s.inTx(ctx, func(repo repository.ConversationRepository, _ repository.MessageRepository) error {
		for _, id := range removedIDs {
			if err := repo.RemoveParticipant(ctx, conversationID, id); err != nil {
				return err
			}
		}
		for _, id := range addedIDs {
			p := conversation.Participant{
				ConversationID:       conversationID,
				UserID:               id,
				HasSeenLatestMessage: false,
				CreatedAt:            now,
			}
			if err := repo.AddParticipant(ctx, &p); err != nil {
				return err
			}
		}
		return repo.Touch(ctx, conversationID, now)
	})
	if err != nil {
		return fmt.Errorf("update participants: %w", err)
	}

	if s.pub != nil {
		updated, err := s.repo.GetByID(ctx, conversationID)
		if err != nil {
			// Reload is only a freshness refinement; the committed diff is
			// already known, so publish from it rather than drop the event.
			s.log.Warnf("conversation %s updated but projection reload failed: %v", conversationID, err)
			updated = applyDiff(conv, addedIDs, removedIDs, now)
		}
		s.pub.Publish(events.TopicConversationUpdated, &events.ConversationUpdated{
			Conversation: conversationView(ctx, updated, s.userRepo, s.msgRepo),
			AddedIDs:     addedIDs,
			RemovedIDs:   removedIDs,
		})
	}
	return nil
}

// applyDiff replays a committed participant diff onto the pre-update
// snapshot so an event can be published even when the post-commit reload
// fails.
func applyDiff(conv conversation.Conversation, addedIDs, removedIDs []uuid.UUID, now time.Time) conversation.Conversation {
	removed := make(map[uuid.UUID]struct{}, len(removedIDs))
	for _, id := range removedIDs {
		removed[id] = struct{}{}
	}
	participants := make([]conversation.Participant, 0, len(conv.Participants)+len(addedIDs))
	for _, p := range conv.Participants {
		if _, ok := removed[p.UserID]; !ok {
			participants = append(participants, p)
		}
	}
	for _, id := range addedIDs {
		participants = append(participants, conversation.Participant{
			ConversationID:       conv.ID,
			UserID:               id,
			HasSeenLatestMessage: false,
			CreatedAt:            now,
		})
	}
	conv.Participants = participants
	conv.UpdatedAt = now
	return conv
}

// MarkRead sets the caller's read flag. Idempotent: when the flag is
// already set nothing is written and nothing is published.
func (s *ConversationService) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	p, err := s.repo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if p.HasSeenLatestMessage {
		return nil
	}
	return s.repo.SetParticipantSeen(ctx, conversationID, userID, true)
}

// Delete removes the conversation, its participants and its message
// history in one transaction. The event is scoped to the participant set
// as it was before deletion. A conversation already gone (concurrent
// delete) counts as success.
func (s *ConversationService) Delete(ctx context.Context, conversationID uuid.UUID) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	participantIDs := conv.ParticipantIDs()

	err = s.inTx(ctx, func(repo repository.ConversationRepository, msgRepo repository.MessageRepository) error {
		if err := msgRepo.DeleteByConversation(ctx, conversationID); err != nil {
			return err
		}
		if err := repo.DeleteParticipants(ctx, conversationID); err != nil {
			return err
		}
		if err := repo.Delete(ctx, conversationID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	if s.pub != nil {
		s.pub.Publish(events.TopicConversationDeleted, &events.ConversationDeleted{
			ConversationID: conversationID,
			ParticipantIDs: participantIDs,
		})
	}
	return nil
}

// ListUserConversations returns the viewer's conversations as full
// projections, most recently updated first.
func (s *ConversationService) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]events.ConversationView, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	conversations, err := s.repo.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	views := make([]events.ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		views = append(views, conversationView(ctx, conv, s.userRepo, s.msgRepo))
	}
	return views, nil
}

// GetByID loads one conversation with its participant set.
func (s *ConversationService) GetByID(ctx context.Context, conversationID uuid.UUID) (conversation.Conversation, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.GetByID(ctx, conversationID)
}

// View loads one conversation as a full projection. Only participants
// may see it.
func (s *ConversationService) View(ctx context.Context, viewerID, conversationID uuid.UUID) (events.ConversationView, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return events.ConversationView{}, err
	}
	if !conv.HasParticipant(viewerID) {
		return events.ConversationView{}, apperrors.ErrNotAuthorized
	}
	return conversationView(ctx, conv, s.userRepo, s.msgRepo), nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
