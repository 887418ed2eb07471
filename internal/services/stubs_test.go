package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brickly26/iMessage/internal/domain/conversation"
	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/domain/message"
	"github.com/brickly26/iMessage/internal/domain/user"
	"github.com/brickly26/iMessage/internal/events"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	topic string
	event events.Event
}

func (p *capturePublisher) Publish(topic string, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedEvent{topic: topic, event: ev})
}

func (p *capturePublisher) events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.published...)
}

type stubUserRepo struct {
	users map[uuid.UUID]user.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[uuid.UUID]user.User)}
}

func (r *stubUserRepo) add(id uuid.UUID, username string) {
	r.users[id] = user.User{
		ID:       id,
		Email:    username + "@example.com",
		Username: sql.NullString{String: username, Valid: username != ""},
	}
}

func (r *stubUserRepo) Create(_ context.Context, u *user.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return apperrors.ErrConflict
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return user.User{}, apperrors.ErrNotFound
	}
	return u, nil
}

func (r *stubUserRepo) GetByUsername(_ context.Context, username string) (user.User, error) {
	for _, u := range r.users {
		if u.Username.String == username {
			return u, nil
		}
	}
	return user.User{}, apperrors.ErrNotFound
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, apperrors.ErrNotFound
}

func (r *stubUserRepo) SearchByUsername(_ context.Context, viewerID uuid.UUID, query string) ([]user.User, error) {
	var out []user.User
	for _, u := range r.users {
		if u.ID == viewerID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username.String), strings.ToLower(query)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username.String < out[j].Username.String })
	return out, nil
}

func (r *stubUserRepo) ClaimUsername(_ context.Context, userID uuid.UUID, username string) error {
	u, ok := r.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Username = sql.NullString{String: username, Valid: true}
	r.users[userID] = u
	return nil
}

func (r *stubUserRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]user.User, error) {
	var out []user.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type stubConversationRepo struct {
	conversations map[uuid.UUID]*conversation.Conversation
}

func newStubConversationRepo() *stubConversationRepo {
	return &stubConversationRepo{conversations: make(map[uuid.UUID]*conversation.Conversation)}
}

func (r *stubConversationRepo) Create(_ context.Context, c *conversation.Conversation) error {
	stored := *c
	stored.Participants = append([]conversation.Participant(nil), c.Participants...)
	r.conversations[c.ID] = &stored
	return nil
}

func (r *stubConversationRepo) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	c, ok := r.conversations[id]
	if !ok {
		return conversation.Conversation{}, apperrors.ErrNotFound
	}
	out := *c
	out.Participants = append([]conversation.Participant(nil), c.Participants...)
	return out, nil
}

func (r *stubConversationRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.conversations[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.conversations, id)
	return nil
}

func (r *stubConversationRepo) GetUserConversations(_ context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	var out []conversation.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			copied := *c
			copied.Participants = append([]conversation.Participant(nil), c.Participants...)
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *stubConversationRepo) AddParticipant(_ context.Context, p *conversation.Participant) error {
	c, ok := r.conversations[p.ConversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for _, existing := range c.Participants {
		if existing.UserID == p.UserID {
			return apperrors.ErrConflict
		}
	}
	c.Participants = append(c.Participants, *p)
	return nil
}

func (r *stubConversationRepo) RemoveParticipant(_ context.Context, conversationID, userID uuid.UUID) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for i, p := range c.Participants {
		if p.UserID == userID {
			c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *stubConversationRepo) GetParticipants(_ context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	c, ok := r.conversations[conversationID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return append([]conversation.Participant(nil), c.Participants...), nil
}

func (r *stubConversationRepo) GetParticipant(_ context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	c, ok := r.conversations[conversationID]
	if !ok {
		return conversation.Participant{}, apperrors.ErrNotFound
	}
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	return conversation.Participant{}, apperrors.ErrNotFound
}

func (r *stubConversationRepo) IsParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	c, ok := r.conversations[conversationID]
	if !ok {
		return false, nil
	}
	return c.HasParticipant(userID), nil
}

func (r *stubConversationRepo) DeleteParticipants(_ context.Context, conversationID uuid.UUID) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Participants = nil
	return nil
}

func (r *stubConversationRepo) SetParticipantSeen(_ context.Context, conversationID, userID uuid.UUID, seen bool) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			c.Participants[i].HasSeenLatestMessage = seen
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *stubConversationRepo) MarkOthersUnseen(_ context.Context, conversationID, senderID uuid.UUID) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for i := range c.Participants {
		if c.Participants[i].UserID != senderID {
			c.Participants[i].HasSeenLatestMessage = false
		}
	}
	return nil
}

func (r *stubConversationRepo) SetLatestMessage(_ context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.LatestMessageID = uuid.NullUUID{UUID: messageID, Valid: true}
	c.UpdatedAt = at
	return nil
}

func (r *stubConversationRepo) Touch(_ context.Context, conversationID uuid.UUID, at time.Time) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.UpdatedAt = at
	return nil
}

type stubMessageRepo struct {
	messages map[uuid.UUID]message.Message
}

func newStubMessageRepo() *stubMessageRepo {
	return &stubMessageRepo{messages: make(map[uuid.UUID]message.Message)}
}

func (r *stubMessageRepo) Create(_ context.Context, m *message.Message) error {
	r.messages[m.ID] = *m
	return nil
}

func (r *stubMessageRepo) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return message.Message{}, apperrors.ErrNotFound
	}
	return m, nil
}

func (r *stubMessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	var out []message.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (r *stubMessageRepo) DeleteByConversation(_ context.Context, conversationID uuid.UUID) error {
	for id, m := range r.messages {
		if m.ConversationID == conversationID {
			delete(r.messages, id)
		}
	}
	return nil
}

type stubFriendshipRepo struct {
	requests map[uuid.UUID]friendship.FriendRequest
	edges    map[[2]uuid.UUID]struct{}
}

func newStubFriendshipRepo() *stubFriendshipRepo {
	return &stubFriendshipRepo{
		requests: make(map[uuid.UUID]friendship.FriendRequest),
		edges:    make(map[[2]uuid.UUID]struct{}),
	}
}

func edgeKey(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() < b.String() {
		return [2]uuid.UUID{a, b}
	}
	return [2]uuid.UUID{b, a}
}

func (r *stubFriendshipRepo) CreateRequest(_ context.Context, req *friendship.FriendRequest) error {
	r.requests[req.ID] = *req
	return nil
}

func (r *stubFriendshipRepo) GetRequestByID(_ context.Context, id uuid.UUID) (friendship.FriendRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return friendship.FriendRequest{}, apperrors.ErrNotFound
	}
	return req, nil
}

func (r *stubFriendshipRepo) UpdateRequestStatus(_ context.Context, id uuid.UUID, status friendship.RequestStatus) error {
	req, ok := r.requests[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = time.Now()
	r.requests[id] = req
	return nil
}

func (r *stubFriendshipRepo) GetActiveRequestBetween(_ context.Context, userA, userB uuid.UUID) (friendship.FriendRequest, error) {
	for _, req := range r.requests {
		between := (req.SenderID == userA && req.ReceiverID == userB) ||
			(req.SenderID == userB && req.ReceiverID == userA)
		if between && req.Status.Active() {
			return req, nil
		}
	}
	return friendship.FriendRequest{}, apperrors.ErrNotFound
}

func (r *stubFriendshipRepo) ListPendingReceived(_ context.Context, userID uuid.UUID) ([]friendship.FriendRequest, error) {
	var out []friendship.FriendRequest
	for _, req := range r.requests {
		if req.ReceiverID == userID && req.Status == friendship.StatusPending {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *stubFriendshipRepo) ListRequestsTouching(_ context.Context, viewerID uuid.UUID, subjectIDs []uuid.UUID) ([]friendship.FriendRequest, error) {
	subjects := make(map[uuid.UUID]struct{}, len(subjectIDs))
	for _, id := range subjectIDs {
		subjects[id] = struct{}{}
	}
	var out []friendship.FriendRequest
	for _, req := range r.requests {
		other := uuid.Nil
		if req.SenderID == viewerID {
			other = req.ReceiverID
		} else if req.ReceiverID == viewerID {
			other = req.SenderID
		}
		if other == uuid.Nil {
			continue
		}
		if _, ok := subjects[other]; ok {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *stubFriendshipRepo) CreateEdge(_ context.Context, userA, userB uuid.UUID) error {
	r.edges[edgeKey(userA, userB)] = struct{}{}
	return nil
}

func (r *stubFriendshipRepo) EdgeExists(_ context.Context, userA, userB uuid.UUID) (bool, error) {
	_, ok := r.edges[edgeKey(userA, userB)]
	return ok, nil
}

func (r *stubFriendshipRepo) ListFriendIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for key := range r.edges {
		if key[0] == userID {
			out = append(out, key[1])
		} else if key[1] == userID {
			out = append(out, key[0])
		}
	}
	return out, nil
}
