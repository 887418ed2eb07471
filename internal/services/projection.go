package services

import (
	"context"

	"github.com/brickly26/iMessage/internal/domain/conversation"
	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/domain/message"
	"github.com/brickly26/iMessage/internal/events"
	"github.com/brickly26/iMessage/internal/repository"

	"github.com/google/uuid"
)

// Projections are assembled explicitly per query; there is no reflective
// include machinery. Event payloads and list responses share the view
// types in the events package.

// UserProjection is a user as seen by a specific viewer.
type UserProjection struct {
	ID           uuid.UUID        `json:"id"`
	Username     string           `json:"username"`
	Relationship friendship.Label `json:"relationship"`
}

// MessageProjection is a message annotated with the viewer-relative
// relationship to its sender.
type MessageProjection struct {
	events.MessageView
	SenderRelationship friendship.Label `json:"senderRelationship"`
}

func messageView(m message.Message, username string) events.MessageView {
	return events.MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderUsername: username,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
	}
}

// conversationView projects a conversation with participant usernames and
// the latest-message back-reference resolved.
func conversationView(ctx context.Context, conv conversation.Conversation, userRepo repository.UserRepository, msgRepo repository.MessageRepository) events.ConversationView {
	view := events.ConversationView{
		ID:        conv.ID,
		UpdatedAt: conv.UpdatedAt,
	}

	usernames := usernamesFor(ctx, userRepo, conv.ParticipantIDs())
	for _, p := range conv.Participants {
		view.Participants = append(view.Participants, events.ParticipantView{
			UserID:               p.UserID,
			Username:             usernames[p.UserID],
			HasSeenLatestMessage: p.HasSeenLatestMessage,
		})
	}

	if conv.LatestMessageID.Valid && msgRepo != nil {
		if m, err := msgRepo.GetByID(ctx, conv.LatestMessageID.UUID); err == nil {
			mv := messageView(m, usernames[m.SenderID])
			if mv.SenderUsername == "" {
				mv.SenderUsername = usernameFor(ctx, userRepo, m.SenderID)
			}
			view.LatestMessage = &mv
		}
	}
	return view
}

func usernamesFor(ctx context.Context, userRepo repository.UserRepository, ids []uuid.UUID) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(ids))
	if userRepo == nil {
		return out
	}
	users, err := userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return out
	}
	for _, u := range users {
		out[u.ID] = u.Username.String
	}
	return out
}

func usernameFor(ctx context.Context, userRepo repository.UserRepository, id uuid.UUID) string {
	if userRepo == nil {
		return ""
	}
	u, err := userRepo.GetByID(ctx, id)
	if err != nil {
		return ""
	}
	return u.Username.String
}
