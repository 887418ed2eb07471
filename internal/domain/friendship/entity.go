package friendship

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a friend request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusAccepted RequestStatus = "ACCEPTED"
	StatusDeclined RequestStatus = "DECLINED"
)

// Active reports whether the request still blocks a new request between the
// same pair. DECLINED is terminal for the request but frees the pair.
func (s RequestStatus) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// FriendRequest represents the friend_requests table. Requests are
// directional; at most one active request may exist per unordered pair,
// which the service enforces because a unique index cannot express it.
type FriendRequest struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	SenderID   uuid.UUID     `gorm:"type:uuid;not null;index:idx_friend_requests_sender"`
	ReceiverID uuid.UUID     `gorm:"type:uuid;not null;index:idx_friend_requests_receiver"`
	Status     RequestStatus `gorm:"type:text;not null"`
	CreatedAt  time.Time     `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time     `gorm:"default:CURRENT_TIMESTAMP"`
}

// Friendship represents the friendships table: the materialized symmetric
// edge. Accepting a request inserts one row per direction in the same
// transaction, so either both exist or neither does.
type Friendship struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	FriendID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

func (FriendRequest) TableName() string {
	return "friend_requests"
}

func (Friendship) TableName() string {
	return "friendships"
}

// Label is the viewer-relative relationship state shown on every projection
// of another user. It is recomputed per query, never stored.
type Label string

const (
	// LabelSendable means no active request exists in either direction,
	// or the only thing between the pair is an inbound pending request
	// (the viewer can still accept, not "send", but the projection the
	// viewer sees is the same).
	LabelSendable Label = "SENDABLE"
	// LabelPending means the viewer has an outbound request awaiting a
	// response.
	LabelPending Label = "PENDING"
	// LabelAccepted means the friendship edge exists.
	LabelAccepted Label = "ACCEPTED"
	// LabelDeclined means the viewer's outbound request was declined and
	// no newer request supersedes it.
	LabelDeclined Label = "DECLINED"
)

// LabelFor derives the viewer-relative label from the viewer's outbound
// request status (zero value when none) and whether an edge exists.
func LabelFor(outbound RequestStatus, hasEdge bool) Label {
	if hasEdge {
		return LabelAccepted
	}
	switch outbound {
	case StatusPending:
		return LabelPending
	case StatusAccepted:
		return LabelAccepted
	case StatusDeclined:
		return LabelDeclined
	default:
		return LabelSendable
	}
}
