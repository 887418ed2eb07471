package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brickly26/iMessage/internal/domain/conversation"
	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/domain/message"
	"github.com/brickly26/iMessage/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	// SearchByUsername matches usernames containing query
	// case-insensitively, excluding the viewer's own row.
	SearchByUsername(ctx context.Context, viewerID uuid.UUID, query string) ([]user.User, error)
	ClaimUsername(ctx context.Context, userID uuid.UUID, username string) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error)

	AddParticipant(ctx context.Context, p *conversation.Participant) error
	RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error
	GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	DeleteParticipants(ctx context.Context, conversationID uuid.UUID) error

	// SetParticipantSeen flips one participant's read flag;
	// MarkOthersUnseen clears the flag for everyone except senderID.
	SetParticipantSeen(ctx context.Context, conversationID, userID uuid.UUID, seen bool) error
	MarkOthersUnseen(ctx context.Context, conversationID, senderID uuid.UUID) error

	SetLatestMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error
	Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	// ListByConversation returns messages newest-first; createdAt ties are
	// broken by id so the order is stable.
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error)
	DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error
}

type FriendshipRepository interface {
	CreateRequest(ctx context.Context, r *friendship.FriendRequest) error
	GetRequestByID(ctx context.Context, id uuid.UUID) (friendship.FriendRequest, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, status friendship.RequestStatus) error

	// GetActiveRequestBetween finds the PENDING or ACCEPTED request in
	// either direction between two users, if one exists.
	GetActiveRequestBetween(ctx context.Context, userA, userB uuid.UUID) (friendship.FriendRequest, error)
	ListPendingReceived(ctx context.Context, userID uuid.UUID) ([]friendship.FriendRequest, error)
	// ListRequestsTouching returns every request between the viewer and any
	// of the subject ids, both directions, newest first.
	ListRequestsTouching(ctx context.Context, viewerID uuid.UUID, subjectIDs []uuid.UUID) ([]friendship.FriendRequest, error)

	CreateEdge(ctx context.Context, userA, userB uuid.UUID) error
	EdgeExists(ctx context.Context, userA, userB uuid.UUID) (bool, error)
	ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}
