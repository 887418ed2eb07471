package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/brickly26/iMessage/internal/domain/conversation"
	"github.com/brickly26/iMessage/internal/domain/message"
	"github.com/brickly26/iMessage/internal/events"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"
)

func newConversationFixture() (*ConversationService, *stubConversationRepo, *stubMessageRepo, *stubUserRepo, *capturePublisher) {
	repo := newStubConversationRepo()
	msgs := newStubMessageRepo()
	users := newStubUserRepo()
	pub := &capturePublisher{}
	svc := NewConversationService(nil, repo, msgs, users, pub, logger.NewNop(), 0)
	return svc, repo, msgs, users, pub
}

func TestCreateConversation(t *testing.T) {
	svc, _, _, users, pub := newConversationFixture()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	users.add(alice, "alice")
	users.add(bob, "bob")
	users.add(carol, "carol")

	// Duplicates in the input and the missing initiator are both fixed up.
	conv, err := svc.Create(context.Background(), alice, []uuid.UUID{bob, carol, bob})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(conv.Participants) != 3 {
		t.Fatalf("participants = %d, want 3", len(conv.Participants))
	}
	for _, p := range conv.Participants {
		wantSeen := p.UserID == alice
		if p.HasSeenLatestMessage != wantSeen {
			t.Errorf("participant %s seen = %v, want %v", p.UserID, p.HasSeenLatestMessage, wantSeen)
		}
	}

	published := pub.events()
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	created, ok := published[0].event.(*events.ConversationCreated)
	if !ok {
		t.Fatalf("published %T, want *events.ConversationCreated", published[0].event)
	}
	if created.Conversation.ID != conv.ID {
		t.Errorf("event conversation id = %s, want %s", created.Conversation.ID, conv.ID)
	}
	if published[0].topic != events.TopicConversationCreated {
		t.Errorf("topic = %s, want %s", published[0].topic, events.TopicConversationCreated)
	}
}

func TestCreateConversationSoloInitiator(t *testing.T) {
	svc, _, _, users, _ := newConversationFixture()
	alice := uuid.New()
	users.add(alice, "alice")

	conv, err := svc.Create(context.Background(), alice, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(conv.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(conv.Participants))
	}
}

func TestFindExistingConversationExactSet(t *testing.T) {
	svc, _, _, users, _ := newConversationFixture()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	users.add(alice, "alice")
	users.add(bob, "bob")
	users.add(carol, "carol")

	pair, err := svc.Create(context.Background(), alice, []uuid.UUID{bob})
	if err != nil {
		t.Fatal(err)
	}
	triple, err := svc.Create(context.Background(), alice, []uuid.UUID{bob, carol})
	if err != nil {
		t.Fatal(err)
	}

	found, err := svc.FindExistingConversation(context.Background(), alice, []uuid.UUID{bob})
	if err != nil {
		t.Fatalf("find pair: %v", err)
	}
	if found.ID != pair.ID {
		t.Fatalf("found %s, want pair %s", found.ID, pair.ID)
	}

	// Order and the viewer's own id in the candidate list are irrelevant.
	found, err = svc.FindExistingConversation(context.Background(), alice, []uuid.UUID{carol, alice, bob})
	if err != nil {
		t.Fatalf("find triple: %v", err)
	}
	if found.ID != triple.ID {
		t.Fatalf("found %s, want triple %s", found.ID, triple.ID)
	}

	// A subset of an existing conversation is not a match.
	stranger := uuid.New()
	if _, err := svc.FindExistingConversation(context.Background(), alice, []uuid.UUID{bob, stranger}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateParticipantsSymmetricDiff(t *testing.T) {
	svc, repo, _, users, pub := newConversationFixture()
	alice, bob, carol, dave := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	for id, name := range map[uuid.UUID]string{alice: "alice", bob: "bob", carol: "carol", dave: "dave"} {
		users.add(id, name)
	}

	conv, err := svc.Create(context.Background(), alice, []uuid.UUID{bob, carol})
	if err != nil {
		t.Fatal(err)
	}

	// Keep alice and bob, drop carol, add dave.
	if err := svc.UpdateParticipants(context.Background(), conv.ID, []uuid.UUID{alice, bob, dave}); err != nil {
		t.Fatalf("UpdateParticipants: %v", err)
	}

	updated, err := repo.GetByID(context.Background(), conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.HasParticipant(carol) {
		t.Error("carol still present after removal")
	}
	if !updated.HasParticipant(dave) {
		t.Error("dave missing after add")
	}
	// Dave joins with the latest message unseen.
	for _, p := range updated.Participants {
		if p.UserID == dave && p.HasSeenLatestMessage {
			t.Error("added participant must start unseen")
		}
	}

	published := pub.events()
	last := published[len(published)-1]
	ev, ok := last.event.(*events.ConversationUpdated)
	if !ok {
		t.Fatalf("last event %T, want *events.ConversationUpdated", last.event)
	}
	if len(ev.AddedIDs) != 1 || ev.AddedIDs[0] != dave {
		t.Errorf("AddedIDs = %v, want [%s]", ev.AddedIDs, dave)
	}
	if len(ev.RemovedIDs) != 1 || ev.RemovedIDs[0] != carol {
		t.Errorf("RemovedIDs = %v, want [%s]", ev.RemovedIDs, carol)
	}
}

func TestUpdateParticipantsNoChange(t *testing.T) {
	svc, _, _, users, pub := newConversationFixture()
	alice, bob := uuid.New(), uuid.New()
	users.add(alice, "alice")
	users.add(bob, "bob")

	conv, err := svc.Create(context.Background(), alice, []uuid.UUID{bob})
	if err != nil {
		t.Fatal(err)
	}
	before := len(pub.events())

	if err := svc.UpdateParticipants(context.Background(), conv.ID, []uuid.UUID{bob, alice}); err != nil {
		t.Fatalf("UpdateParticipants: %v", err)
	}
	if got := len(pub.events()); got != before {
		t.Fatalf("no-op update published %d new events", got-before)
	}
}

func TestUpdateParticipantsEmptySetDeletes(t *testing.T) {
	svc, repo, msgs, users, pub := newConversationFixture()
	alice, bob := uuid.New(), uuid.New()
	users.add(alice, "alice")
	users.add(bob, "bob")

	conv, err := svc.Create(context.Background(), alice, []uuid.UUID{bob})
	if err != nil {
		t.Fatal(err)
	}
	_ = msgs.Create(context.Background(), &message.Message{
		ID: uuid.New(), ConversationID: conv.ID, SenderID: alice, Body: "hi",
	})

	if err := svc.UpdateParticipants(context.Background(), conv.ID, nil); err != nil {
		t.Fatalf("UpdateParticipants: %v", err)
	}

	if _, err := repo.GetByID(context.Background(), conv.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("conversation still present, err = %v", err)
	}
	if remaining, _ := msgs.ListByConversation(context.Background(), conv.ID); len(remaining) != 0 {
		t.Fatalf("%d messages survived the cascade", len(remaining))
	}

	published := pub.events()
	last := published[len(published)-1]
	ev, ok := last.event.(*events.ConversationDeleted)
	if !ok {
		t.Fatalf("last event %T, want *events.ConversationDeleted", last.event)
	}
	if len(ev.ParticipantIDs) != 2 {
		t.Errorf("deleted event carries %d participants, want pre-delete set of 2", len(ev.ParticipantIDs))
	}
}

func TestDeleteMissingConversationIsSuccess(t *testing.T) {
	svc, _, _, _, pub := newConversationFixture()

	if err := svc.Delete(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(pub.events()) != 0 {
		t.Fatal("deleting nothing must publish nothing")
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, repo, _, users, _ := newConversationFixture()
	alice, bob := uuid.New(), uuid.New()
	users.add(alice, "alice")
	users.add(bob, "bob")

	conv, err := svc.Create(context.Background(), alice, []uuid.UUID{bob})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.MarkRead(context.Background(), bob, conv.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := svc.MarkRead(context.Background(), bob, conv.ID); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}

	p, err := repo.GetParticipant(context.Background(), conv.ID, bob)
	if err != nil {
		t.Fatal(err)
	}
	if !p.HasSeenLatestMessage {
		t.Fatal("read flag not set")
	}
}

// reloadFailConvRepo fails GetByID from the failFrom-th call on, so the
// post-commit projection reload can be made to fail while the pre-update
// load succeeds.
type reloadFailConvRepo struct {
	*stubConversationRepo
	failFrom int
	calls    int
}

func (r *reloadFailConvRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.calls++
	if r.calls >= r.failFrom {
		return conversation.Conversation{}, errors.New("connection reset")
	}
	return r.stubConversationRepo.GetByID(ctx, id)
}

func TestUpdateParticipantsPublishesWhenReloadFails(t *testing.T) {
	repo := &reloadFailConvRepo{stubConversationRepo: newStubConversationRepo(), failFrom: 2}
	users := newStubUserRepo()
	pub := &capturePublisher{}
	svc := NewConversationService(nil, repo, newStubMessageRepo(), users, pub, logger.NewNop(), 0)

	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	users.add(alice, "alice")
	users.add(bob, "bob")
	users.add(carol, "carol")

	conv, err := svc.Create(context.Background(), alice, []uuid.UUID{bob})
	if err != nil {
		t.Fatal(err)
	}

	// First GetByID loads the pre-update snapshot; the post-commit reload
	// is the second call and fails.
	if err := svc.UpdateParticipants(context.Background(), conv.ID, []uuid.UUID{alice, carol}); err != nil {
		t.Fatalf("UpdateParticipants: %v", err)
	}

	var updated *events.ConversationUpdated
	for _, p := range pub.events() {
		if ev, ok := p.event.(*events.ConversationUpdated); ok {
			updated = ev
		}
	}
	if updated == nil {
		t.Fatal("no ConversationUpdated published despite the committed diff")
	}
	if len(updated.AddedIDs) != 1 || updated.AddedIDs[0] != carol {
		t.Errorf("AddedIDs = %v, want [%s]", updated.AddedIDs, carol)
	}
	if len(updated.RemovedIDs) != 1 || updated.RemovedIDs[0] != bob {
		t.Errorf("RemovedIDs = %v, want [%s]", updated.RemovedIDs, bob)
	}
	if !updated.Conversation.HasParticipant(carol) || updated.Conversation.HasParticipant(bob) {
		t.Errorf("event participant set %v does not reflect the diff", updated.Conversation.Participants)
	}
}
