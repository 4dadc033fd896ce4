package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"FriendsWebServer/internal/domain"
)

// RelationshipsStore persists relationship records. Both methods run fn while the
// pair (or row) is locked, so fn always sees the latest committed record.
type RelationshipsStore interface {
	// MutatePair passes nil to fn when {userA, userB} has no record yet.
	MutatePair(ctx context.Context, userA, userB string, fn func(cur *domain.Relationship) (domain.Relationship, error)) (domain.Relationship, bool, error)
	MutateByID(ctx context.Context, id string, fn func(cur domain.Relationship) (domain.Relationship, error)) (domain.Relationship, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type RelationshipNotifier interface {
	NotifyFriendRequest(ctx context.Context, rel domain.Relationship) error
	NotifyRequestAccepted(ctx context.Context, rel domain.Relationship) error
}

type FriendCacheInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string) error
}

type TransitionRecorder interface {
	RecordTransition(op string, err error)
}

type RelationshipService struct {
	Store    RelationshipsStore
	Users    UserLookup
	Notifier RelationshipNotifier
	Cache    FriendCacheInvalidator
	Metrics  TransitionRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *RelationshipService) SendFriendRequest(ctx context.Context, actorID, targetID string) (domain.Relationship, bool, error) {
	targetID = strings.TrimSpace(targetID)
	rel, created, err := s.sendFriendRequest(ctx, actorID, targetID)
	s.record("send_request", err)
	if err != nil {
		return domain.Relationship{}, false, err
	}

	s.invalidate(ctx, rel)
	if s.Notifier != nil {
		if err := s.Notifier.NotifyFriendRequest(ctx, rel); err != nil {
			s.logger().Error("notify friend request failed", "err", err, "relationship_id", rel.ID)
		}
	}
	return rel, created, nil
}

func (s *RelationshipService) sendFriendRequest(ctx context.Context, actorID, targetID string) (domain.Relationship, bool, error) {
	if err := domain.ValidatePair(actorID, targetID); err != nil {
		return domain.Relationship{}, false, err
	}
	if err := s.checkTarget(ctx, targetID, true); err != nil {
		return domain.Relationship{}, false, err
	}

	now := s.now()
	return s.Store.MutatePair(ctx, actorID, targetID, func(cur *domain.Relationship) (domain.Relationship, error) {
		return domain.SendRequest(cur, actorID, targetID, now)
	})
}

func (s *RelationshipService) AcceptFriendRequest(ctx context.Context, actorID, relationshipID string) (domain.Relationship, error) {
	rel, err := s.respond(ctx, actorID, relationshipID, domain.AcceptRequest)
	s.record("accept_request", err)
	if err != nil {
		return domain.Relationship{}, err
	}

	s.invalidate(ctx, rel)
	if s.Notifier != nil {
		if err := s.Notifier.NotifyRequestAccepted(ctx, rel); err != nil {
			s.logger().Error("notify request accepted failed", "err", err, "relationship_id", rel.ID)
		}
	}
	return rel, nil
}

func (s *RelationshipService) RejectFriendRequest(ctx context.Context, actorID, relationshipID string) (domain.Relationship, error) {
	rel, err := s.respond(ctx, actorID, relationshipID, domain.RejectRequest)
	s.record("reject_request", err)
	if err != nil {
		return domain.Relationship{}, err
	}
	s.invalidate(ctx, rel)
	return rel, nil
}

func (s *RelationshipService) respond(ctx context.Context, actorID, relationshipID string, transition func(domain.Relationship, string, time.Time) (domain.Relationship, error)) (domain.Relationship, error) {
	relationshipID = strings.TrimSpace(relationshipID)
	if relationshipID == "" {
		return domain.Relationship{}, domain.NewValidationError(map[string]string{"relationship_id": "required"})
	}

	now := s.now()
	return s.Store.MutateByID(ctx, relationshipID, func(cur domain.Relationship) (domain.Relationship, error) {
		return transition(cur, actorID, now)
	})
}

func (s *RelationshipService) BlockUser(ctx context.Context, actorID, targetID string) (domain.Relationship, bool, error) {
	targetID = strings.TrimSpace(targetID)
	rel, created, err := s.blockUser(ctx, actorID, targetID)
	s.record("block", err)
	if err != nil {
		return domain.Relationship{}, false, err
	}
	s.invalidate(ctx, rel)
	return rel, created, nil
}

func (s *RelationshipService) blockUser(ctx context.Context, actorID, targetID string) (domain.Relationship, bool, error) {
	if err := domain.ValidatePair(actorID, targetID); err != nil {
		return domain.Relationship{}, false, err
	}
	if err := s.checkTarget(ctx, targetID, false); err != nil {
		return domain.Relationship{}, false, err
	}

	now := s.now()
	return s.Store.MutatePair(ctx, actorID, targetID, func(cur *domain.Relationship) (domain.Relationship, error) {
		return domain.Block(cur, actorID, targetID, now)
	})
}

func (s *RelationshipService) UnblockUser(ctx context.Context, actorID, targetID string) (domain.Relationship, error) {
	targetID = strings.TrimSpace(targetID)
	rel, err := s.unblockUser(ctx, actorID, targetID)
	s.record("unblock", err)
	if err != nil {
		return domain.Relationship{}, err
	}
	s.invalidate(ctx, rel)
	return rel, nil
}

func (s *RelationshipService) unblockUser(ctx context.Context, actorID, targetID string) (domain.Relationship, error) {
	if err := domain.ValidatePair(actorID, targetID); err != nil {
		return domain.Relationship{}, err
	}

	now := s.now()
	rel, _, err := s.Store.MutatePair(ctx, actorID, targetID, func(cur *domain.Relationship) (domain.Relationship, error) {
		return domain.Unblock(cur, actorID, targetID, now)
	})
	return rel, err
}

// checkTarget makes sure the target exists in the directory. Friend requests to
// disabled accounts are refused; blocks are always allowed.
func (s *RelationshipService) checkTarget(ctx context.Context, targetID string, requireActive bool) error {
	if s.Users == nil {
		return nil
	}
	u, err := s.Users.GetUserByID(ctx, targetID)
	if err != nil {
		return err
	}
	if requireActive && u.Status == domain.UserStatusDisabled {
		return domain.ErrForbidden
	}
	return nil
}

func (s *RelationshipService) invalidate(ctx context.Context, rel domain.Relationship) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, rel.RequesterID, rel.ReceiverID); err != nil {
		s.logger().Warn("friend cache invalidate failed", "err", err, "relationship_id", rel.ID)
	}
}

func (s *RelationshipService) record(op string, err error) {
	if s.Metrics != nil {
		s.Metrics.RecordTransition(op, err)
	}
	if errors.Is(err, domain.ErrInvariant) {
		s.logger().Error("relationship invariant violated", "op", op, "err", err)
	}
}

func (s *RelationshipService) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Truncate(time.Microsecond)
}

func (s *RelationshipService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
