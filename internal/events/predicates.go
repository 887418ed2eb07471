package events

import "github.com/google/uuid"

// Canonical delivery predicates. Authorization is evaluated per delivery,
// not at subscribe time, because membership can change in between.

// ConversationVisible admits conversation lifecycle events whose
// participant set contains the viewer. Updates are also delivered to a
// viewer being removed (so their client can evict the conversation) and
// to the author of the latest message (so they see their own echo).
func ConversationVisible(ev Event, viewerID uuid.UUID) bool {
	switch e := ev.(type) {
	case *ConversationCreated:
		return e.Conversation.HasParticipant(viewerID)
	case *ConversationUpdated:
		if e.Conversation.HasParticipant(viewerID) {
			return true
		}
		for _, id := range e.RemovedIDs {
			if id == viewerID {
				return true
			}
		}
		if lm := e.Conversation.LatestMessage; lm != nil && lm.SenderID == viewerID {
			return true
		}
		return false
	case *ConversationDeleted:
		for _, id := range e.ParticipantIDs {
			if id == viewerID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MessageForConversation admits message.sent events belonging to the bound
// conversation. Membership was established by the subscribe-time check;
// the id match keeps a stale subscription from leaking another topic's
// payloads.
func MessageForConversation(conversationID uuid.UUID) Predicate {
	return func(ev Event, _ uuid.UUID) bool {
		e, ok := ev.(*MessageSent)
		return ok && e.Message.ConversationID == conversationID
	}
}

// FriendRequestParty admits friend request events where the viewer is the
// sender or the receiver.
func FriendRequestParty(ev Event, viewerID uuid.UUID) bool {
	var req FriendRequestView
	switch e := ev.(type) {
	case *FriendRequestSent:
		req = e.Request
	case *FriendRequestAccepted:
		req = e.Request
	case *FriendRequestDeclined:
		req = e.Request
	default:
		return false
	}
	return req.SenderID == viewerID || req.ReceiverID == viewerID
}
