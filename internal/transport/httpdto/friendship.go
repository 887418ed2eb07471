package httpdto

import "github.com/brickly26/iMessage/internal/events"

type SendFriendRequestRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
}

type RespondFriendRequestRequest struct {
	Choice string `json:"choice" binding:"required"` // ACCEPT or DECLINE
}

type FriendRequestResponse struct {
	Request events.FriendRequestView `json:"request"`
}

type ListFriendRequestsResponse struct {
	Requests []events.FriendRequestView `json:"requests"`
}
