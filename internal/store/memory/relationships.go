// Package memory holds mutex-guarded implementations of the service store
// interfaces. They back the tests and keep the same locking contract as the
// postgres stores.
package memory

import (
	"context"
	"sync"

	"FriendsWebServer/internal/domain"

	"github.com/google/uuid"
)

type RelationshipsStore struct {
	mu     sync.Mutex
	byID   map[string]*domain.Relationship
	byPair map[pairKey]string
	order  []string
}

type pairKey struct{ lo, hi string }

func keyFor(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

func NewRelationshipsStore() *RelationshipsStore {
	return &RelationshipsStore{
		byID:   make(map[string]*domain.Relationship),
		byPair: make(map[pairKey]string),
	}
}

func (s *RelationshipsStore) MutatePair(_ context.Context, userA, userB string, fn func(cur *domain.Relationship) (domain.Relationship, error)) (domain.Relationship, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(userA, userB)
	var cur *domain.Relationship
	if id, ok := s.byPair[key]; ok {
		c := s.byID[id].Clone()
		cur = &c
	}

	next, err := fn(cur)
	if err != nil {
		return domain.Relationship{}, false, err
	}

	if cur == nil {
		next.ID = uuid.NewString()
		stored := next.Clone()
		s.byID[next.ID] = &stored
		s.byPair[keyFor(next.RequesterID, next.ReceiverID)] = next.ID
		s.order = append(s.order, next.ID)
		return next, true, nil
	}

	next.ID = cur.ID
	next.RequesterID = cur.RequesterID
	next.ReceiverID = cur.ReceiverID
	next.CreatedAt = cur.CreatedAt
	stored := next.Clone()
	s.byID[cur.ID] = &stored
	return next, false, nil
}

func (s *RelationshipsStore) MutateByID(_ context.Context, id string, fn func(cur domain.Relationship) (domain.Relationship, error)) (domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[id]
	if !ok {
		return domain.Relationship{}, domain.ErrNotFound
	}
	cur := stored.Clone()

	next, err := fn(cur)
	if err != nil {
		return domain.Relationship{}, err
	}
	next.ID = cur.ID
	next.RequesterID = cur.RequesterID
	next.ReceiverID = cur.ReceiverID
	next.CreatedAt = cur.CreatedAt
	updated := next.Clone()
	s.byID[id] = &updated
	return next, nil
}

// Get returns the record for a pair regardless of argument order.
func (s *RelationshipsStore) Get(_ context.Context, userA, userB string) (domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[keyFor(userA, userB)]
	if !ok {
		return domain.Relationship{}, domain.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *RelationshipsStore) ListAccepted(_ context.Context, userID string) ([]domain.Relationship, error) {
	return s.filter(func(r *domain.Relationship) bool {
		return r.Status == domain.RelationshipAccepted && r.Involves(userID)
	}), nil
}

func (s *RelationshipsStore) ListPendingReceived(_ context.Context, userID string) ([]domain.Relationship, error) {
	return s.filter(func(r *domain.Relationship) bool {
		return r.Status == domain.RelationshipPending && r.ReceiverID == userID
	}), nil
}

func (s *RelationshipsStore) ListBetween(_ context.Context, viewerID string, otherIDs []string) ([]domain.Relationship, error) {
	want := make(map[string]bool, len(otherIDs))
	for _, id := range otherIDs {
		want[id] = true
	}
	return s.filter(func(r *domain.Relationship) bool {
		return r.Involves(viewerID) && want[r.OtherParty(viewerID)]
	}), nil
}

func (s *RelationshipsStore) filter(keep func(*domain.Relationship) bool) []domain.Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Relationship{}
	for _, id := range s.order {
		r := s.byID[id]
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}
