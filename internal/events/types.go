package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies an event's shape on the wire.
type Type string

const (
	TypeConversationCreated   Type = "conversation.created"
	TypeConversationUpdated   Type = "conversation.updated"
	TypeConversationDeleted   Type = "conversation.deleted"
	TypeMessageSent           Type = "message.sent"
	TypeFriendRequestSent     Type = "friend_request.sent"
	TypeFriendRequestAccepted Type = "friend_request.accepted"
	TypeFriendRequestDeclined Type = "friend_request.declined"
)

// Topics are opaque strings addressing a fan-out channel. Conversation
// lifecycle events share broad topics filtered by delivery predicates;
// message and friend-request events use narrow per-entity topics.
const (
	TopicConversationCreated = "conversation-created"
	TopicConversationUpdated = "conversation-updated"
	TopicConversationDeleted = "conversation-deleted"
)

// MessageTopic is the per-conversation topic for message.sent events.
func MessageTopic(conversationID uuid.UUID) string {
	return "message-sent:" + conversationID.String()
}

// FriendRequestTopic is the per-user topic for friend request events.
func FriendRequestTopic(userID uuid.UUID) string {
	return "friend-request:" + userID.String()
}

// Event is any payload the bus can deliver.
type Event interface {
	EventType() Type
}

// ParticipantView projects a participant row into event payloads.
type ParticipantView struct {
	UserID               uuid.UUID `json:"userId"`
	Username             string    `json:"username,omitempty"`
	HasSeenLatestMessage bool      `json:"hasSeenLatestMessage"`
}

// MessageView projects a message with its sender annotation.
type MessageView struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       uuid.UUID `json:"senderId"`
	SenderUsername string    `json:"senderUsername,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationView projects a conversation with participants and the
// latest-message back-reference.
type ConversationView struct {
	ID            uuid.UUID         `json:"id"`
	Participants  []ParticipantView `json:"participants"`
	LatestMessage *MessageView      `json:"latestMessage,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// HasParticipant reports whether userID appears in the projected set.
func (v ConversationView) HasParticipant(userID uuid.UUID) bool {
	for _, p := range v.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// FriendRequestView projects a friend request with its sender.
type FriendRequestView struct {
	ID             uuid.UUID `json:"id"`
	SenderID       uuid.UUID `json:"senderId"`
	ReceiverID     uuid.UUID `json:"receiverId"`
	Status         string    `json:"status"`
	SenderUsername string    `json:"senderUsername,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ConversationCreated struct {
	Conversation ConversationView `json:"conversation"`
}

func (ConversationCreated) EventType() Type { return TypeConversationCreated }

type ConversationUpdated struct {
	Conversation ConversationView `json:"conversation"`
	AddedIDs     []uuid.UUID      `json:"addedIds,omitempty"`
	RemovedIDs   []uuid.UUID      `json:"removedIds,omitempty"`
}

func (ConversationUpdated) EventType() Type { return TypeConversationUpdated }

// ConversationDeleted carries the participant set as it was before the
// delete so predicates can still scope delivery.
type ConversationDeleted struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	ParticipantIDs []uuid.UUID `json:"participantIds"`
}

func (ConversationDeleted) EventType() Type { return TypeConversationDeleted }

type MessageSent struct {
	Message MessageView `json:"message"`
}

func (MessageSent) EventType() Type { return TypeMessageSent }

type FriendRequestSent struct {
	Request FriendRequestView `json:"request"`
}

func (FriendRequestSent) EventType() Type { return TypeFriendRequestSent }

type FriendRequestAccepted struct {
	Request FriendRequestView `json:"request"`
}

func (FriendRequestAccepted) EventType() Type { return TypeFriendRequestAccepted }

type FriendRequestDeclined struct {
	Request FriendRequestView `json:"request"`
}

func (FriendRequestDeclined) EventType() Type { return TypeFriendRequestDeclined }
