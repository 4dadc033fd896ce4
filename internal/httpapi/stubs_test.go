package httpapi

import (
	"context"
	"testing"
	"time"

	"FriendsWebServer/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	createFunc   func(context.Context, domain.NewUser) (domain.User, error)
	getByIDFunc  func(context.Context, string) (domain.User, error)
	getLoginFunc func(context.Context, string) (domain.UserWithPassword, error)
}

func (s *stubUsersStore) CreateUser(ctx context.Context, nu domain.NewUser) (domain.User, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, nu)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, context.Canceled
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getByIDFunc != nil {
		return s.getByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, context.Canceled
}

func (s *stubUsersStore) GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error) {
	if s.getLoginFunc != nil {
		return s.getLoginFunc(ctx, login)
	}
	s.t.Fatalf("GetUserByLogin called unexpectedly")
	return domain.UserWithPassword{}, context.Canceled
}

func (s *stubUsersStore) GetUserByEmail(context.Context, string) (domain.UserWithPassword, error) {
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.UserWithPassword{}, context.Canceled
}

func (s *stubUsersStore) SetLastLogin(context.Context, string, time.Time) error {
	return nil
}

func (s *stubUsersStore) GetUserByExternalAccount(context.Context, string, string) (domain.User, domain.ExternalAccount, error) {
	s.t.Fatalf("GetUserByExternalAccount called unexpectedly")
	return domain.User{}, domain.ExternalAccount{}, context.Canceled
}

func (s *stubUsersStore) CreateUserWithExternalAccount(context.Context, domain.NewUser, string, string) (domain.User, domain.ExternalAccount, error) {
	s.t.Fatalf("CreateUserWithExternalAccount called unexpectedly")
	return domain.User{}, domain.ExternalAccount{}, context.Canceled
}

func (s *stubUsersStore) LinkExternalAccount(context.Context, string, string, string, string) (domain.ExternalAccount, error) {
	s.t.Fatalf("LinkExternalAccount called unexpectedly")
	return domain.ExternalAccount{}, context.Canceled
}

// fakeSessions keeps sessions in a map so sign-in and authenticated requests
// can be exercised end to end.
type fakeSessions struct {
	sessions map[string]domain.Session
	revoked  []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]domain.Session{}}
}

func (f *fakeSessions) CreateSession(_ context.Context, userID string, expiresAt time.Time, _, _ string) (string, error) {
	id := "sess-" + userID
	f.sessions[id] = domain.Session{ID: id, UserID: userID, ExpiresAt: expiresAt}
	return id, nil
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (domain.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess, nil
}

func (f *fakeSessions) RevokeSession(_ context.Context, id string, _ time.Time) error {
	delete(f.sessions, id)
	f.revoked = append(f.revoked, id)
	return nil
}
