package httpdto

import "github.com/brickly26/iMessage/internal/events"

type CreateConversationRequest struct {
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

type FindConversationRequest struct {
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

type UpdateParticipantsRequest struct {
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

type ConversationResponse struct {
	Conversation events.ConversationView `json:"conversation"`
}

type ListConversationsResponse struct {
	Conversations []events.ConversationView `json:"conversations"`
}
