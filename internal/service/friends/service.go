package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/pocketgarden/pocketgarden-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrSelfRequest      = errors.New("cannot send friend request to yourself")
	ErrDuplicateRequest = errors.New("friend request or friendship already exists")
	ErrNotFound         = errors.New("friend relationship not found")
	ErrUserNotFound     = errors.New("user not found")
)

// Store is the persistence the friend graph needs.
type Store interface {
	store.UserStore
	store.FriendStore
}

// Service owns the friend-request state machine. A pending request is a
// single requester-to-target edge; an accepted friendship is two edges, one
// in each direction, and both must exist for the relationship to be mutual.
type Service struct {
	store Store
}

// New creates a new friends service.
func New(st Store) *Service {
	return &Service{store: st}
}

// Request sends a friend request to the user with the given username
// (matched case-insensitively) and returns the resolved target.
func (s *Service) Request(ctx context.Context, fromID int64, targetUsername string) (*store.User, error) {
	target, err := s.store.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return nil, fmt.Errorf("look up target: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}
	if target.ID == fromID {
		return nil, ErrSelfRequest
	}

	// Any existing edge in either direction, pending or accepted, blocks a
	// new request.
	existing, err := s.store.GetEdgeBetween(ctx, fromID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing edge: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateRequest
	}

	if err := s.store.InsertEdge(ctx, fromID, target.ID, store.FriendStatusPending); err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}
	return target, nil
}

// Accept accepts a pending request from fromID to byID. The requester's edge
// flips to accepted and the reverse edge is inserted, completing the pair.
func (s *Service) Accept(ctx context.Context, byID, fromID int64) error {
	edge, err := s.store.GetEdge(ctx, fromID, byID)
	if err != nil {
		return fmt.Errorf("look up request: %w", err)
	}
	if edge == nil || edge.Status != store.FriendStatusPending {
		return ErrNotFound
	}

	if err := s.store.UpdateEdgeStatus(ctx, fromID, byID, store.FriendStatusAccepted); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}
	if err := s.store.InsertEdge(ctx, byID, fromID, store.FriendStatusAccepted); err != nil {
		return fmt.Errorf("insert reverse edge: %w", err)
	}
	return nil
}

// Reject rejects a pending request from fromID to byID, deleting edges in
// both directions.
func (s *Service) Reject(ctx context.Context, byID, fromID int64) error {
	edge, err := s.store.GetEdge(ctx, fromID, byID)
	if err != nil {
		return fmt.Errorf("look up request: %w", err)
	}
	if edge == nil || edge.Status != store.FriendStatusPending {
		return ErrNotFound
	}

	if _, err := s.store.DeleteEdgesBetween(ctx, byID, fromID); err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	return nil
}

// Unfriend deletes edges between two users in both directions regardless of
// their current status.
func (s *Service) Unfriend(ctx context.Context, userID, friendID int64) error {
	deleted, err := s.store.DeleteEdgesBetween(ctx, userID, friendID)
	if err != nil {
		return fmt.Errorf("unfriend: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// AcceptedFriends returns the ids of accepted friends as seen from userID's
// own outgoing edges. Delivery logic only trusts this direction.
func (s *Service) AcceptedFriends(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.store.ListAcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accepted friends: %w", err)
	}
	return ids, nil
}
