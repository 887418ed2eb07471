// Package clientcache is the reference reconciler for the normalized
// store a client keeps on its side of the websocket. Every merge is
// idempotent so re-delivered or replayed events converge to the same
// state.
package clientcache

import (
	"sync"

	"github.com/google/uuid"

	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/events"
)

// Cache mirrors the server's view of one user's conversations, message
// lists, pending friend requests and relationship labels.
type Cache struct {
	mu sync.Mutex

	viewerID uuid.UUID

	conversations map[uuid.UUID]events.ConversationView
	// messages holds each conversation's messages newest-first.
	messages map[uuid.UUID][]events.MessageView
	pending  map[uuid.UUID]events.FriendRequestView
	labels   map[uuid.UUID]friendship.Label

	// CurrentConversationID is the conversation the user has open, or
	// uuid.Nil. It drives whether an incoming message is auto-seen.
	currentConversationID uuid.UUID
}

func New(viewerID uuid.UUID) *Cache {
	return &Cache{
		viewerID:      viewerID,
		conversations: make(map[uuid.UUID]events.ConversationView),
		messages:      make(map[uuid.UUID][]events.MessageView),
		pending:       make(map[uuid.UUID]events.FriendRequestView),
		labels:        make(map[uuid.UUID]friendship.Label),
	}
}

// SetCurrentConversation records which conversation the user is viewing.
// Pass uuid.Nil when none is open.
func (c *Cache) SetCurrentConversation(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentConversationID = id
}

func (c *Cache) CurrentConversation() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentConversationID
}

// Seed installs a server snapshot, replacing whatever the cache held
// for the seeded conversations.
func (c *Cache) Seed(conversations []events.ConversationView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conv := range conversations {
		c.conversations[conv.ID] = conv
	}
}

// SeedMessages installs a conversation's message page, newest-first.
func (c *Cache) SeedMessages(conversationID uuid.UUID, msgs []events.MessageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[conversationID] = append([]events.MessageView(nil), msgs...)
}

// Apply merges one delivered event. Applying the same event twice leaves
// the cache unchanged.
func (c *Cache) Apply(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case *events.ConversationCreated:
		c.upsertConversation(e.Conversation)
	case *events.ConversationUpdated:
		c.applyConversationUpdated(e)
	case *events.ConversationDeleted:
		c.dropConversation(e.ConversationID)
	case *events.MessageSent:
		c.applyMessageSent(e.Message)
	case *events.FriendRequestSent:
		c.applyRequestSent(e.Request)
	case *events.FriendRequestAccepted:
		c.applyRequestResolved(e.Request, friendship.LabelAccepted)
	case *events.FriendRequestDeclined:
		c.applyRequestResolved(e.Request, friendship.LabelDeclined)
	}
}

func (c *Cache) upsertConversation(view events.ConversationView) {
	if existing, ok := c.conversations[view.ID]; ok && existing.UpdatedAt.After(view.UpdatedAt) {
		// Stale replay; the cache already holds a newer projection.
		return
	}
	c.conversations[view.ID] = view
}

func (c *Cache) applyConversationUpdated(e *events.ConversationUpdated) {
	if !e.Conversation.HasParticipant(c.viewerID) {
		// The viewer was removed (or never belonged). Drop local state;
		// the event was delivered only so the removal is observable.
		c.dropConversation(e.Conversation.ID)
		return
	}
	c.upsertConversation(e.Conversation)
}

func (c *Cache) dropConversation(id uuid.UUID) {
	delete(c.conversations, id)
	delete(c.messages, id)
	if c.currentConversationID == id {
		c.currentConversationID = uuid.Nil
	}
}

func (c *Cache) applyMessageSent(msg events.MessageView) {
	list := c.messages[msg.ConversationID]
	for _, existing := range list {
		if existing.ID == msg.ID {
			return
		}
	}
	c.messages[msg.ConversationID] = append([]events.MessageView{msg}, list...)

	conv, ok := c.conversations[msg.ConversationID]
	if !ok {
		return
	}
	conv.LatestMessage = &msg
	if msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
	}
	// Whoever sent it has seen it; the viewer has too if the
	// conversation is open on screen.
	participants := make([]events.ParticipantView, len(conv.Participants))
	for i, p := range conv.Participants {
		p.HasSeenLatestMessage = p.UserID == msg.SenderID ||
			(p.UserID == c.viewerID && c.currentConversationID == msg.ConversationID)
		participants[i] = p
	}
	conv.Participants = participants
	c.conversations[msg.ConversationID] = conv
}

func (c *Cache) applyRequestSent(req events.FriendRequestView) {
	if req.ReceiverID == c.viewerID {
		c.pending[req.ID] = req
	}
	if req.SenderID == c.viewerID {
		c.labels[req.ReceiverID] = friendship.LabelPending
	}
}

func (c *Cache) applyRequestResolved(req events.FriendRequestView, label friendship.Label) {
	delete(c.pending, req.ID)
	other := req.SenderID
	if other == c.viewerID {
		other = req.ReceiverID
	}
	if label == friendship.LabelAccepted {
		c.labels[other] = friendship.LabelAccepted
		return
	}
	// Declines read differently per side: the sender sees DECLINED, the
	// receiver can still be sent a fresh request.
	if req.SenderID == c.viewerID {
		c.labels[other] = friendship.LabelDeclined
	} else {
		c.labels[other] = friendship.LabelSendable
	}
}

// Conversation returns the cached projection for id.
func (c *Cache) Conversation(id uuid.UUID) (events.ConversationView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[id]
	return conv, ok
}

// Conversations returns every cached conversation in unspecified order.
func (c *Cache) Conversations() []events.ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.ConversationView, 0, len(c.conversations))
	for _, conv := range c.conversations {
		out = append(out, conv)
	}
	return out
}

// Messages returns a conversation's cached messages newest-first.
func (c *Cache) Messages(conversationID uuid.UUID) []events.MessageView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.MessageView(nil), c.messages[conversationID]...)
}

// PendingRequests returns the viewer's inbound pending requests.
func (c *Cache) PendingRequests() []events.FriendRequestView {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.FriendRequestView, 0, len(c.pending))
	for _, req := range c.pending {
		out = append(out, req)
	}
	return out
}

// Label returns the cached relationship label for a user, defaulting to
// SENDABLE when nothing is known.
func (c *Cache) Label(userID uuid.UUID) friendship.Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.labels[userID]; ok {
		return l
	}
	return friendship.LabelSendable
}
