package websocket

import (
	"context"

	"github.com/google/uuid"

	"github.com/brickly26/iMessage/internal/repository"
)

// Authorizer gates subscribe-time access to per-conversation message
// streams. Lifecycle topics need no gate here because their delivery
// predicates re-check visibility on every event.
type Authorizer struct {
	conversationRepo repository.ConversationRepository
}

func NewAuthorizer(conversationRepo repository.ConversationRepository) *Authorizer {
	return &Authorizer{conversationRepo: conversationRepo}
}

// CanSubscribeMessages reports whether userID may attach to the message
// stream of conversationID. Only current participants may.
func (a *Authorizer) CanSubscribeMessages(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	return a.conversationRepo.IsParticipant(ctx, conversationID, userID)
}
