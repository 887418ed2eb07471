package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/brickly26/iMessage/internal/events"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"
)

// Frame is the JSON envelope pushed to clients.
type Frame struct {
	Type    events.Type `json:"type"`
	Payload any         `json:"payload"`
}

// Gateway binds WebSocket clients to the event bus. Every connection is
// attached to the conversation lifecycle topics and the user's friend
// request topic; per-conversation message streams are attached on demand
// through control frames.
type Gateway struct {
	bus        *events.Bus
	authorizer *Authorizer
	log        *logger.Logger
}

func NewGateway(bus *events.Bus, authorizer *Authorizer, log *logger.Logger) *Gateway {
	return &Gateway{bus: bus, authorizer: authorizer, log: log}
}

// Session holds one client's live subscriptions. Close tears all of
// them down; message subscriptions can also be dropped individually.
type Session struct {
	gateway *Gateway
	client  *Client

	mu          sync.Mutex
	base        []*events.Subscription
	messageSubs map[uuid.UUID]*events.Subscription
	closed      bool
}

// Attach subscribes the client to its always-on topics and starts a pump
// per subscription. The pumps exit when their subscription closes.
func (g *Gateway) Attach(ctx context.Context, client *Client) *Session {
	s := &Session{
		gateway:     g,
		client:      client,
		messageSubs: make(map[uuid.UUID]*events.Subscription),
	}

	base := []*events.Subscription{
		g.bus.Subscribe(events.TopicConversationCreated, client.UserID, events.ConversationVisible),
		g.bus.Subscribe(events.TopicConversationUpdated, client.UserID, events.ConversationVisible),
		g.bus.Subscribe(events.TopicConversationDeleted, client.UserID, events.ConversationVisible),
		g.bus.Subscribe(events.FriendRequestTopic(client.UserID), client.UserID, events.FriendRequestParty),
	}
	s.base = base
	for _, sub := range base {
		go s.pump(sub)
	}
	return s
}

// SubscribeMessages attaches the client to one conversation's message
// stream after a membership check. Subscribing twice is a no-op.
func (s *Session) SubscribeMessages(ctx context.Context, conversationID uuid.UUID) error {
	ok, err := s.gateway.authorizer.CanSubscribeMessages(ctx, s.client.UserID, conversationID)
	if err != nil {
		return fmt.Errorf("authorize subscription: %w", err)
	}
	if !ok {
		return apperrors.ErrNotAuthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if _, exists := s.messageSubs[conversationID]; exists {
		return nil
	}
	sub := s.gateway.bus.Subscribe(
		events.MessageTopic(conversationID),
		s.client.UserID,
		events.MessageForConversation(conversationID),
	)
	s.messageSubs[conversationID] = sub
	go s.pump(sub)
	return nil
}

// UnsubscribeMessages detaches the client from one conversation's
// message stream.
func (s *Session) UnsubscribeMessages(conversationID uuid.UUID) {
	s.mu.Lock()
	sub, ok := s.messageSubs[conversationID]
	if ok {
		delete(s.messageSubs, conversationID)
	}
	s.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Close tears down every subscription. The pumps exit once their
// channels drain.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]*events.Subscription, 0, len(s.base)+len(s.messageSubs))
	subs = append(subs, s.base...)
	for _, sub := range s.messageSubs {
		subs = append(subs, sub)
	}
	s.base = nil
	s.messageSubs = map[uuid.UUID]*events.Subscription{}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (s *Session) pump(sub *events.Subscription) {
	for ev := range sub.Events() {
		frame, err := json.Marshal(Frame{Type: ev.EventType(), Payload: ev})
		if err != nil {
			s.gateway.log.Errorf("marshal event %s: %v", ev.EventType(), err)
			continue
		}
		s.client.SendMessage(frame)
	}
}
