package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/domain/message"
	"github.com/brickly26/iMessage/internal/events"
	"github.com/brickly26/iMessage/internal/repository"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageService appends messages and keeps the conversation's
// latest-message pointer and per-participant read flags consistent with
// them. Messages are immutable; only the conversation delete cascade
// removes them.
type MessageService struct {
	db          *gorm.DB
	repo        repository.MessageRepository
	convRepo    repository.ConversationRepository
	userRepo    repository.UserRepository
	friendships *FriendshipService
	pub         events.Publisher
	log         *logger.Logger
	timeout     time.Duration
}

func NewMessageService(db *gorm.DB, repo repository.MessageRepository, convRepo repository.ConversationRepository, userRepo repository.UserRepository, friendships *FriendshipService, pub events.Publisher, log *logger.Logger, timeout time.Duration) *MessageService {
	return &MessageService{db: db, repo: repo, convRepo: convRepo, userRepo: userRepo, friendships: friendships, pub: pub, log: log, timeout: timeout}
}

func (s *MessageService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *MessageService) inTx(ctx context.Context, fn func(repo repository.MessageRepository, convRepo repository.ConversationRepository) error) error {
	if s.db == nil {
		return fn(s.repo, s.convRepo)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repository.NewMessageRepository(tx), repository.NewConversationRepository(tx))
	})
}

// Send appends a message. In one transaction the message is inserted, the
// conversation's latest-message pointer and updatedAt advance, the sender
// is marked seen and every other participant unseen. MessageSent goes out
// on the conversation's topic only after the commit; the conversation
// list additionally gets a ConversationUpdated so latest-message metadata
// refreshes.
func (s *MessageService) Send(ctx context.Context, senderID, conversationID uuid.UUID, body string) (message.Message, error) {
	if strings.TrimSpace(body) == "" {
		return message.Message{}, apperrors.ErrEmptyBody
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	now := time.Now()
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      now,
	}
	// Membership is checked inside the transaction so a concurrent removal
	// cannot slip a message in after losing participation.
	err := s.inTx(ctx, func(repo repository.MessageRepository, convRepo repository.ConversationRepository) error {
		isParticipant, err := convRepo.IsParticipant(ctx, conversationID, senderID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !isParticipant {
			return apperrors.ErrNotAuthorized
		}
		if err := repo.Create(ctx, &msg); err != nil {
			return err
		}
		if err := convRepo.SetLatestMessage(ctx, conversationID, msg.ID, now); err != nil {
			return err
		}
		if err := convRepo.SetParticipantSeen(ctx, conversationID, senderID, true); err != nil {
			return err
		}
		return convRepo.MarkOthersUnseen(ctx, conversationID, senderID)
	})
	if err != nil {
		return message.Message{}, fmt.Errorf("send message: %w", err)
	}

	s.publishSent(ctx, msg)
	return msg, nil
}

func (s *MessageService) publishSent(ctx context.Context, msg message.Message) {
	if s.pub == nil {
		return
	}
	view := messageView(msg, usernameFor(ctx, s.userRepo, msg.SenderID))
	s.pub.Publish(events.MessageTopic(msg.ConversationID), &events.MessageSent{Message: view})

	conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		s.log.Warnf("message %s sent but conversation reload failed: %v", msg.ID, err)
		return
	}
	s.pub.Publish(events.TopicConversationUpdated, &events.ConversationUpdated{
		Conversation: conversationView(ctx, conv, s.userRepo, s.repo),
	})
}

// ViewOf projects a message for transport, resolving the sender's
// username.
func (s *MessageService) ViewOf(ctx context.Context, msg message.Message) events.MessageView {
	return messageView(msg, usernameFor(ctx, s.userRepo, msg.SenderID))
}

// List returns the conversation's messages newest-first, each sender
// annotated with the viewer-relative relationship label. The viewer must
// be a current participant.
func (s *MessageService) List(ctx context.Context, viewerID, conversationID uuid.UUID) ([]MessageProjection, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, apperrors.ErrNotAuthorized
	}

	messages, err := s.repo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	senderIDs := make([]uuid.UUID, 0, len(messages))
	seen := make(map[uuid.UUID]struct{})
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	usernames := usernamesFor(ctx, s.userRepo, senderIDs)
	labels := map[uuid.UUID]friendship.Label{}
	if s.friendships != nil {
		labels, err = s.friendships.RelationshipLabels(ctx, viewerID, senderIDs)
		if err != nil {
			return nil, fmt.Errorf("annotate senders: %w", err)
		}
	}

	out := make([]MessageProjection, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageProjection{
			MessageView:        messageView(m, usernames[m.SenderID]),
			SenderRelationship: labels[m.SenderID],
		})
	}
	return out, nil
}
