package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brickly26/iMessage/internal/domain/friendship"
	"github.com/brickly26/iMessage/internal/events"
	"github.com/brickly26/iMessage/internal/repository"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendshipService owns the friend-request lifecycle and the derived
// friendship edges. Requests are directional; the service enforces the
// "one active request per unordered pair" rule that a unique index cannot
// express, and collapses mutual requests into a single accepted one.
type FriendshipService struct {
	db       *gorm.DB
	repo     repository.FriendshipRepository
	userRepo repository.UserRepository
	pub      events.Publisher
	log      *logger.Logger
	timeout  time.Duration
}

func NewFriendshipService(db *gorm.DB, repo repository.FriendshipRepository, userRepo repository.UserRepository, pub events.Publisher, log *logger.Logger, timeout time.Duration) *FriendshipService {
	return &FriendshipService{db: db, repo: repo, userRepo: userRepo, pub: pub, log: log, timeout: timeout}
}

func (s *FriendshipService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// inTx runs fn against transaction-scoped repositories. Without a db
// handle (tests) fn runs directly against the injected ones.
func (s *FriendshipService) inTx(ctx context.Context, fn func(repo repository.FriendshipRepository) error) error {
	if s.db == nil {
		return fn(s.repo)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repository.NewFriendshipRepository(tx))
	})
}

// SendRequest creates a PENDING request from sender to receiver, unless
// the receiver already has a pending request the other way, in which case
// both requests are collapsed into that one being accepted.
func (s *FriendshipService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (friendship.FriendRequest, error) {
	if senderID == receiverID {
		return friendship.FriendRequest{}, apperrors.ErrSelfRequest
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	hasEdge, err := s.repo.EdgeExists(ctx, senderID, receiverID)
	if err != nil {
		return friendship.FriendRequest{}, fmt.Errorf("check friendship: %w", err)
	}
	if hasEdge {
		return friendship.FriendRequest{}, apperrors.ErrAlreadyFriends
	}

	active, err := s.repo.GetActiveRequestBetween(ctx, senderID, receiverID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return friendship.FriendRequest{}, fmt.Errorf("check active request: %w", err)
	}
	if err == nil {
		if active.SenderID == senderID {
			return friendship.FriendRequest{}, apperrors.ErrDuplicateRequest
		}
		if active.Status == friendship.StatusPending {
			// Mutual request: both sides tried to friend each other.
			// Accept the existing inbound request instead of creating
			// a second one.
			return s.accept(ctx, active)
		}
		return friendship.FriendRequest{}, apperrors.ErrAlreadyFriends
	}

	req := friendship.FriendRequest{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     friendship.StatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.repo.CreateRequest(ctx, &req); err != nil {
		return friendship.FriendRequest{}, fmt.Errorf("create request: %w", err)
	}

	s.publish(ctx, &events.FriendRequestSent{Request: s.requestView(ctx, req)}, req)
	return req, nil
}

// Respond resolves a pending request addressed to userID. Only the
// receiver of a PENDING request may respond; anything else is NotFound so
// callers cannot probe other users' requests.
func (s *FriendshipService) Respond(ctx context.Context, userID, requestID uuid.UUID, choice friendship.RequestStatus) (friendship.FriendRequest, error) {
	if choice != friendship.StatusAccepted && choice != friendship.StatusDeclined {
		return friendship.FriendRequest{}, apperrors.ErrInvalidChoice
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	req, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return friendship.FriendRequest{}, err
	}
	if req.ReceiverID != userID || req.Status != friendship.StatusPending {
		return friendship.FriendRequest{}, apperrors.ErrNotFound
	}

	if choice == friendship.StatusAccepted {
		return s.accept(ctx, req)
	}

	if err := s.repo.UpdateRequestStatus(ctx, req.ID, friendship.StatusDeclined); err != nil {
		return friendship.FriendRequest{}, fmt.Errorf("decline request: %w", err)
	}
	req.Status = friendship.StatusDeclined
	s.publish(ctx, &events.FriendRequestDeclined{Request: s.requestView(ctx, req)}, req)
	return req, nil
}

// accept flips req to ACCEPTED and materializes the symmetric edge in one
// transaction, then publishes once.
func (s *FriendshipService) accept(ctx context.Context, req friendship.FriendRequest) (friendship.FriendRequest, error) {
	err := s.inTx(ctx, func(repo repository.FriendshipRepository) error {
		if err := repo.UpdateRequestStatus(ctx, req.ID, friendship.StatusAccepted); err != nil {
			return err
		}
		return repo.CreateEdge(ctx, req.SenderID, req.ReceiverID)
	})
	if err != nil {
		return friendship.FriendRequest{}, fmt.Errorf("accept request: %w", err)
	}

	req.Status = friendship.StatusAccepted
	s.publish(ctx, &events.FriendRequestAccepted{Request: s.requestView(ctx, req)}, req)
	return req, nil
}

// publish fans a request event out to both parties' topics. Delivery is
// best-effort and never fails the mutation.
func (s *FriendshipService) publish(ctx context.Context, ev events.Event, req friendship.FriendRequest) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(events.FriendRequestTopic(req.SenderID), ev)
	s.pub.Publish(events.FriendRequestTopic(req.ReceiverID), ev)
}

// RequestView projects a request for transport.
func (s *FriendshipService) RequestView(ctx context.Context, req friendship.FriendRequest) events.FriendRequestView {
	return s.requestView(ctx, req)
}

func (s *FriendshipService) requestView(ctx context.Context, req friendship.FriendRequest) events.FriendRequestView {
	view := events.FriendRequestView{
		ID:         req.ID,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Status:     string(req.Status),
		CreatedAt:  req.CreatedAt,
	}
	if s.userRepo != nil {
		if sender, err := s.userRepo.GetByID(ctx, req.SenderID); err == nil {
			view.SenderUsername = sender.Username.String
		}
	}
	return view
}

// ListReceivedRequests returns the viewer's pending inbound requests with
// sender projections, newest first.
func (s *FriendshipService) ListReceivedRequests(ctx context.Context, userID uuid.UUID) ([]events.FriendRequestView, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	requests, err := s.repo.ListPendingReceived(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list received requests: %w", err)
	}
	views := make([]events.FriendRequestView, 0, len(requests))
	for _, req := range requests {
		views = append(views, s.requestView(ctx, req))
	}
	return views, nil
}

// FriendIDs lists the ids of the viewer's accepted friends.
func (s *FriendshipService) FriendIDs(ctx context.Context, viewerID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.ListFriendIDs(ctx, viewerID)
}

// RelationshipLabel computes the viewer-relative label for one subject.
func (s *FriendshipService) RelationshipLabel(ctx context.Context, viewerID, subjectID uuid.UUID) (friendship.Label, error) {
	labels, err := s.RelationshipLabels(ctx, viewerID, []uuid.UUID{subjectID})
	if err != nil {
		return "", err
	}
	return labels[subjectID], nil
}

// RelationshipLabels computes viewer-relative labels for a candidate set
// in two queries. The label is never stored: it is derived from the edge
// set and the newest request between each pair. Inbound pending requests
// map to SENDABLE from the viewer's side (the viewer can still accept, it
// just cannot send another one; the UI distinguishes direction itself).
func (s *FriendshipService) RelationshipLabels(ctx context.Context, viewerID uuid.UUID, subjectIDs []uuid.UUID) (map[uuid.UUID]friendship.Label, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	labels := make(map[uuid.UUID]friendship.Label, len(subjectIDs))
	for _, id := range subjectIDs {
		labels[id] = friendship.LabelSendable
	}
	if len(subjectIDs) == 0 {
		return labels, nil
	}

	friendIDs, err := s.repo.ListFriendIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	friends := make(map[uuid.UUID]struct{}, len(friendIDs))
	for _, id := range friendIDs {
		friends[id] = struct{}{}
	}

	requests, err := s.repo.ListRequestsTouching(ctx, viewerID, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	// Newest request per pair wins; ListRequestsTouching is newest-first.
	decided := make(map[uuid.UUID]struct{}, len(requests))
	for _, req := range requests {
		subject := req.ReceiverID
		outbound := req.SenderID == viewerID
		if !outbound {
			subject = req.SenderID
		}
		if _, ok := labels[subject]; !ok {
			continue
		}
		if _, ok := decided[subject]; ok {
			continue
		}
		decided[subject] = struct{}{}
		if outbound {
			labels[subject] = friendship.LabelFor(req.Status, false)
		} else if req.Status == friendship.StatusAccepted {
			labels[subject] = friendship.LabelAccepted
		}
	}

	for id := range labels {
		if _, ok := friends[id]; ok {
			labels[id] = friendship.LabelAccepted
		}
	}
	return labels, nil
}
