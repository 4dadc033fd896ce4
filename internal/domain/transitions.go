package domain

import (
	"slices"
	"strings"
	"time"
)

// The functions in this file are the relationship state machine. Each takes the
// record currently stored for a pair (nil when the pair has none) and returns the
// record to persist. Stores call them while holding the pair's lock.

// ValidatePair checks the actor/target ids of a pair operation.
func ValidatePair(actor, target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return NewValidationError(map[string]string{"user_id": "required"})
	}
	if target == actor {
		return NewValidationError(map[string]string{"user_id": "cannot target yourself"})
	}
	return nil
}

// CheckInvariants reports stored state that no transition can produce.
func CheckInvariants(r Relationship) error {
	if r.RequesterID == "" || r.ReceiverID == "" {
		return NewInvariantError("relationship %s: missing party", r.ID)
	}
	if r.RequesterID == r.ReceiverID {
		return NewInvariantError("relationship %s: self relationship", r.ID)
	}
	switch r.Status {
	case RelationshipBlocked:
		if len(r.BlockedBy) == 0 {
			return NewInvariantError("relationship %s: blocked without blockers", r.ID)
		}
		for _, id := range r.BlockedBy {
			if !r.Involves(id) {
				return NewInvariantError("relationship %s: blocker %s outside pair", r.ID, id)
			}
		}
	case RelationshipPending, RelationshipAccepted, RelationshipRejected:
		if len(r.BlockedBy) != 0 {
			return NewInvariantError("relationship %s: blockers on %s record", r.ID, r.Status)
		}
	default:
		return NewInvariantError("relationship %s: unknown status %q", r.ID, r.Status)
	}
	return nil
}

func SendRequest(cur *Relationship, actor, target string, now time.Time) (Relationship, error) {
	if err := ValidatePair(actor, target); err != nil {
		return Relationship{}, err
	}
	if cur == nil {
		return Relationship{
			RequesterID: actor,
			ReceiverID:  target,
			Status:      RelationshipPending,
			BlockedBy:   []string{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	}
	if err := CheckInvariants(*cur); err != nil {
		return Relationship{}, err
	}

	switch cur.Status {
	case RelationshipAccepted:
		return Relationship{}, NewConflictError(ReasonAlreadyFriends)
	case RelationshipPending:
		return Relationship{}, NewConflictError(ReasonAlreadySent)
	case RelationshipBlocked:
		return Relationship{}, NewConflictError(ReasonBlocked)
	case RelationshipRejected:
		next := cur.Clone()
		next.Status = RelationshipPending
		next.UpdatedAt = now
		return next, nil
	default:
		return Relationship{}, NewInvariantError("relationship %s: unknown status %q", cur.ID, cur.Status)
	}
}

func AcceptRequest(cur Relationship, actor string, now time.Time) (Relationship, error) {
	return respond(cur, actor, RelationshipAccepted, now)
}

func RejectRequest(cur Relationship, actor string, now time.Time) (Relationship, error) {
	return respond(cur, actor, RelationshipRejected, now)
}

func respond(cur Relationship, actor string, to RelationshipStatus, now time.Time) (Relationship, error) {
	if err := CheckInvariants(cur); err != nil {
		return Relationship{}, err
	}
	if actor == cur.RequesterID {
		return Relationship{}, NewAuthorizationError(ReasonOwnRequest)
	}
	if actor != cur.ReceiverID {
		return Relationship{}, NewAuthorizationError(ReasonNotReceiver)
	}
	if cur.Status != RelationshipPending {
		return Relationship{}, NewConflictError(ReasonNotPending)
	}

	next := cur.Clone()
	next.Status = to
	next.UpdatedAt = now
	return next, nil
}

// Block has no preconditions beyond a valid pair: every prior state collapses to blocked.
func Block(cur *Relationship, actor, target string, now time.Time) (Relationship, error) {
	if err := ValidatePair(actor, target); err != nil {
		return Relationship{}, err
	}
	if cur == nil {
		return Relationship{
			RequesterID: actor,
			ReceiverID:  target,
			Status:      RelationshipBlocked,
			BlockedBy:   []string{actor},
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	}

	next := cur.Clone()
	if next.Status != RelationshipBlocked {
		next.BlockedBy = next.BlockedBy[:0]
	}
	next.Status = RelationshipBlocked
	if !next.IsBlockedBy(actor) {
		next.BlockedBy = append(next.BlockedBy, actor)
	}
	next.UpdatedAt = now
	return next, nil
}

func Unblock(cur *Relationship, actor, target string, now time.Time) (Relationship, error) {
	if err := ValidatePair(actor, target); err != nil {
		return Relationship{}, err
	}
	if cur == nil || cur.Status != RelationshipBlocked {
		return Relationship{}, ErrNotFound
	}
	if !cur.IsBlockedBy(actor) {
		return Relationship{}, NewConflictError(ReasonNotBlocker)
	}

	next := cur.Clone()
	next.BlockedBy = slices.DeleteFunc(next.BlockedBy, func(id string) bool { return id == actor })
	if len(next.BlockedBy) == 0 {
		next.Status = RelationshipRejected
	}
	next.UpdatedAt = now
	return next, nil
}
