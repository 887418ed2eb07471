package httpdto

import (
	"github.com/brickly26/iMessage/internal/events"
	"github.com/brickly26/iMessage/internal/services"
)

type SendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

type MessageResponse struct {
	Message events.MessageView `json:"message"`
}

type ListedMessage struct {
	events.MessageView
	SenderRelationship string `json:"senderRelationship"`
}

type ListMessagesResponse struct {
	Messages []ListedMessage `json:"messages"`
}

func FromMessageProjectionSlice(items []services.MessageProjection) []ListedMessage {
	out := make([]ListedMessage, 0, len(items))
	for _, item := range items {
		out = append(out, ListedMessage{
			MessageView:        item.MessageView,
			SenderRelationship: string(item.SenderRelationship),
		})
	}
	return out
}
