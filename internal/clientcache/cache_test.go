package clientcache

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/events"
)

func conversationWith(updatedAt time.Time, userIDs ...uuid.UUID) events.ConversationView {
	parts := make([]events.ParticipantView, len(userIDs))
	for i, id := range userIDs {
		parts[i] = events.ParticipantView{UserID: id}
	}
	return events.ConversationView{
		ID:           uuid.New(),
		Participants: parts,
		UpdatedAt:    updatedAt,
	}
}

func TestApplyConversationCreatedIsIdempotent(t *testing.T) {
	viewer := uuid.New()
	cache := New(viewer)
	conv := conversationWith(time.Now(), viewer, uuid.New())
	ev := &events.ConversationCreated{Conversation: conv}

	cache.Apply(ev)
	cache.Apply(ev)

	if got := cache.Conversations(); len(got) != 1 {
		t.Fatalf("cached %d conversations, want 1", len(got))
	}
	if _, ok := cache.Conversation(conv.ID); !ok {
		t.Fatal("conversation missing after apply")
	}
}

func TestApplyStaleUpdateIgnored(t *testing.T) {
	viewer := uuid.New()
	cache := New(viewer)

	now := time.Now()
	conv := conversationWith(now, viewer)
	cache.Seed([]events.ConversationView{conv})

	stale := conv
	stale.UpdatedAt = now.Add(-time.Minute)
	stale.Participants = append(stale.Participants, events.ParticipantView{UserID: uuid.New()})
	cache.Apply(&events.ConversationUpdated{Conversation: stale})

	got, ok := cache.Conversation(conv.ID)
	if !ok {
		t.Fatal("conversation dropped by stale update")
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
	}
	if len(got.Participants) != 1 {
		t.Errorf("stale participant set merged, got %d participants", len(got.Participants))
	}
}

func TestApplyUpdateRemovingViewerEvictsState(t *testing.T) {
	viewer := uuid.New()
	other := uuid.New()
	cache := New(viewer)

	conv := conversationWith(time.Now(), viewer, other)
	cache.Seed([]events.ConversationView{conv})
	cache.SeedMessages(conv.ID, []events.MessageView{{ID: uuid.New(), ConversationID: conv.ID}})
	cache.SetCurrentConversation(conv.ID)

	updated := conv
	updated.Participants = []events.ParticipantView{{UserID: other}}
	updated.UpdatedAt = conv.UpdatedAt.Add(time.Second)
	cache.Apply(&events.ConversationUpdated{
		Conversation: updated,
		RemovedIDs:   []uuid.UUID{viewer},
	})

	if _, ok := cache.Conversation(conv.ID); ok {
		t.Error("conversation survived the viewer's removal")
	}
	if msgs := cache.Messages(conv.ID); len(msgs) != 0 {
		t.Errorf("kept %d messages for an evicted conversation", len(msgs))
	}
	if cur := cache.CurrentConversation(); cur != uuid.Nil {
		t.Errorf("current conversation = %v, want nil", cur)
	}
}

func TestApplyConversationDeleted(t *testing.T) {
	viewer := uuid.New()
	cache := New(viewer)

	conv := conversationWith(time.Now(), viewer)
	cache.Seed([]events.ConversationView{conv})
	cache.SeedMessages(conv.ID, []events.MessageView{{ID: uuid.New(), ConversationID: conv.ID}})

	ev := &events.ConversationDeleted{ConversationID: conv.ID, ParticipantIDs: []uuid.UUID{viewer}}
	cache.Apply(ev)
	cache.Apply(ev)

	if _, ok := cache.Conversation(conv.ID); ok {
		t.Error("conversation survived delete")
	}
	if msgs := cache.Messages(conv.ID); len(msgs) != 0 {
		t.Error("messages survived delete")
	}
}

func TestApplyMessageSentDedupesAndUpdatesSeen(t *testing.T) {
	viewer := uuid.New()
	sender := uuid.New()
	cache := New(viewer)

	conv := conversationWith(time.Now(), viewer, sender)
	cache.Seed([]events.ConversationView{conv})

	first := events.MessageView{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender,
		Body:           "hello",
		CreatedAt:      conv.UpdatedAt.Add(time.Second),
	}
	cache.Apply(&events.MessageSent{Message: first})
	cache.Apply(&events.MessageSent{Message: first})

	msgs := cache.Messages(conv.ID)
	if len(msgs) != 1 {
		t.Fatalf("cached %d messages, want 1", len(msgs))
	}

	got, _ := cache.Conversation(conv.ID)
	if got.LatestMessage == nil || got.LatestMessage.ID != first.ID {
		t.Fatal("latest message not updated")
	}
	if !got.UpdatedAt.Equal(first.CreatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, first.CreatedAt)
	}
	for _, p := range got.Participants {
		switch p.UserID {
		case sender:
			if !p.HasSeenLatestMessage {
				t.Error("sender should have seen their own message")
			}
		case viewer:
			if p.HasSeenLatestMessage {
				t.Error("viewer saw a message without the conversation open")
			}
		}
	}

	second := events.MessageView{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender,
		Body:           "again",
		CreatedAt:      first.CreatedAt.Add(time.Second),
	}
	cache.SetCurrentConversation(conv.ID)
	cache.Apply(&events.MessageSent{Message: second})

	msgs = cache.Messages(conv.ID)
	if len(msgs) != 2 {
		t.Fatalf("cached %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != second.ID {
		t.Error("newest message should be first")
	}

	got, _ = cache.Conversation(conv.ID)
	for _, p := range got.Participants {
		if p.UserID == viewer && !p.HasSeenLatestMessage {
			t.Error("viewer with the conversation open should auto-see")
		}
	}
}

func TestApplyMessageForUnknownConversation(t *testing.T) {
	viewer := uuid.New()
	cache := New(viewer)
	msg := events.MessageView{ID: uuid.New(), ConversationID: uuid.New(), SenderID: uuid.New()}

	cache.Apply(&events.MessageSent{Message: msg})

	if msgs := cache.Messages(msg.ConversationID); len(msgs) != 1 {
		t.Fatal("message should still be retained for later seeding")
	}
}

func TestApplyFriendRequestSent(t *testing.T) {
	viewer := uuid.New()
	other := uuid.New()

	req := events.FriendRequestView{ID: uuid.New(), SenderID: other, ReceiverID: viewer, Status: "PENDING"}

	receiver := New(viewer)
	receiver.Apply(&events.FriendRequestSent{Request: req})
	receiver.Apply(&events.FriendRequestSent{Request: req})
	if got := receiver.PendingRequests(); len(got) != 1 {
		t.Fatalf("receiver has %d pending requests, want 1", len(got))
	}

	sender := New(other)
	sender.Apply(&events.FriendRequestSent{Request: req})
	if got := sender.Label(viewer); got != friendship.LabelPending {
		t.Errorf("sender label = %s, want %s", got, friendship.LabelPending)
	}
	if got := sender.PendingRequests(); len(got) != 0 {
		t.Error("sender should not list their own request as inbound")
	}
}

func TestApplyFriendRequestAccepted(t *testing.T) {
	viewer := uuid.New()
	other := uuid.New()
	req := events.FriendRequestView{ID: uuid.New(), SenderID: other, ReceiverID: viewer}

	cache := New(viewer)
	cache.Apply(&events.FriendRequestSent{Request: req})
	cache.Apply(&events.FriendRequestAccepted{Request: req})

	if got := cache.PendingRequests(); len(got) != 0 {
		t.Error("accepted request still pending")
	}
	if got := cache.Label(other); got != friendship.LabelAccepted {
		t.Errorf("label = %s, want %s", got, friendship.LabelAccepted)
	}
}

func TestApplyFriendRequestDeclinedReadsPerSide(t *testing.T) {
	senderID := uuid.New()
	receiverID := uuid.New()
	req := events.FriendRequestView{ID: uuid.New(), SenderID: senderID, ReceiverID: receiverID}

	sender := New(senderID)
	sender.Apply(&events.FriendRequestSent{Request: req})
	sender.Apply(&events.FriendRequestDeclined{Request: req})
	if got := sender.Label(receiverID); got != friendship.LabelDeclined {
		t.Errorf("sender label = %s, want %s", got, friendship.LabelDeclined)
	}

	receiver := New(receiverID)
	receiver.Apply(&events.FriendRequestSent{Request: req})
	receiver.Apply(&events.FriendRequestDeclined{Request: req})
	if got := receiver.PendingRequests(); len(got) != 0 {
		t.Error("declined request still pending")
	}
	if got := receiver.Label(senderID); got != friendship.LabelSendable {
		t.Errorf("receiver label = %s, want %s", got, friendship.LabelSendable)
	}
}

func TestLabelDefaultsToSendable(t *testing.T) {
	cache := New(uuid.New())
	if got := cache.Label(uuid.New()); got != friendship.LabelSendable {
		t.Errorf("label = %s, want %s", got, friendship.LabelSendable)
	}
}
