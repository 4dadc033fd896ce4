package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"FriendsWebServer/internal/auth"
	"FriendsWebServer/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc             func(context.Context, domain.NewUser) (domain.User, error)
	getUserByIDFunc            func(context.Context, string) (domain.User, error)
	getUserByLoginFunc         func(context.Context, string) (domain.UserWithPassword, error)
	getUserByEmailFunc         func(context.Context, string) (domain.UserWithPassword, error)
	getUserByExternalFunc      func(context.Context, string, string) (domain.User, domain.ExternalAccount, error)
	createUserWithExternalFunc func(context.Context, domain.NewUser, string, string) (domain.User, domain.ExternalAccount, error)
	linkExternalAccountFunc    func(context.Context, string, string, string, string) (domain.ExternalAccount, error)
	setLastLoginFunc           func(context.Context, string, time.Time) error
}

func (s *stubUsersStore) CreateUser(ctx context.Context, nu domain.NewUser) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, nu)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error) {
	if s.getUserByLoginFunc != nil {
		return s.getUserByLoginFunc(ctx, login)
	}
	s.t.Fatalf("GetUserByLogin called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	if s.getUserByEmailFunc != nil {
		return s.getUserByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
	if s.getUserByExternalFunc != nil {
		return s.getUserByExternalFunc(ctx, provider, providerID)
	}
	s.t.Fatalf("GetUserByExternalAccount called unexpectedly")
	return domain.User{}, domain.ExternalAccount{}, errors.New("unexpected call")
}

func (s *stubUsersStore) CreateUserWithExternalAccount(ctx context.Context, nu domain.NewUser, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
	if s.createUserWithExternalFunc != nil {
		return s.createUserWithExternalFunc(ctx, nu, provider, providerID)
	}
	s.t.Fatalf("CreateUserWithExternalAccount called unexpectedly")
	return domain.User{}, domain.ExternalAccount{}, errors.New("unexpected call")
}

func (s *stubUsersStore) LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	if s.linkExternalAccountFunc != nil {
		return s.linkExternalAccountFunc(ctx, userID, provider, providerID, email)
	}
	s.t.Fatalf("LinkExternalAccount called unexpectedly")
	return domain.ExternalAccount{}, errors.New("unexpected call")
}

func (s *stubUsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	if s.setLastLoginFunc != nil {
		return s.setLastLoginFunc(ctx, userID, when)
	}
	return nil
}

type stubSessionsStore struct {
	t *testing.T

	createSessionFunc func(context.Context, string, time.Time, string, string) (string, error)
	getSessionFunc    func(context.Context, string) (domain.Session, error)
	revokeSessionFunc func(context.Context, string, time.Time) error
}

func (s *stubSessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	if s.createSessionFunc != nil {
		return s.createSessionFunc(ctx, userID, expiresAt, ip, userAgent)
	}
	s.t.Fatalf("CreateSession called unexpectedly")
	return "", errors.New("unexpected call")
}

func (s *stubSessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if s.getSessionFunc != nil {
		return s.getSessionFunc(ctx, sessionID)
	}
	s.t.Fatalf("GetSession called unexpectedly")
	return domain.Session{}, errors.New("unexpected call")
}

func (s *stubSessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	if s.revokeSessionFunc != nil {
		return s.revokeSessionFunc(ctx, sessionID, when)
	}
	s.t.Fatalf("RevokeSession called unexpectedly")
	return errors.New("unexpected call")
}

var testClient = ClientInfo{IP: "1.2.3.4", UserAgent: "unit-test"}

func TestAuthServiceRegister(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	users := &stubUsersStore{
		t: t,
		createUserFunc: func(_ context.Context, nu domain.NewUser) (domain.User, error) {
			if nu.Email != "jane@example.com" || nu.Username != "jane_doe" {
				t.Fatalf("unexpected new user: %+v", nu)
			}
			if nu.DisplayName != "jane_doe" {
				t.Fatalf("expected display name to default to username, got %q", nu.DisplayName)
			}
			if nu.Gender != domain.GenderFemale {
				t.Fatalf("unexpected gender %q", nu.Gender)
			}
			if ok, err := auth.VerifyPassword(nu.PasswordHash, "s3cret-pass"); err != nil || !ok {
				t.Fatalf("expected stored hash to verify")
			}
			return domain.User{ID: "user-1", Email: nu.Email, Username: nu.Username}, nil
		},
	}
	sessions := &stubSessionsStore{
		t: t,
		createSessionFunc: func(_ context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
			if userID != "user-1" || !expiresAt.Equal(now.Add(time.Hour)) {
				t.Fatalf("unexpected session args: %s %s", userID, expiresAt)
			}
			if ip != testClient.IP || userAgent != testClient.UserAgent {
				t.Fatalf("unexpected client info")
			}
			return "sess-1", nil
		},
	}
	svc := &AuthService{Users: users, Sessions: sessions, SessionTTL: time.Hour, Now: func() time.Time { return now }}

	u, sessID, err := svc.Register(context.Background(), RegisterInput{
		Email:    "  Jane@Example.com ",
		Username: " jane_doe ",
		Password: "s3cret-pass",
		Gender:   "Female",
	}, testClient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "user-1" || sessID != "sess-1" {
		t.Fatalf("unexpected register result: %+v %s", u, sessID)
	}
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := &AuthService{Users: &stubUsersStore{t: t}, Sessions: &stubSessionsStore{t: t}}

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "not-an-email",
		Username: "x!",
		Password: "short",
		Gender:   "robot",
	}, testClient)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"email", "username", "password", "gender"} {
		if _, ok := ve.Fields[field]; !ok {
			t.Fatalf("expected %s to be reported, got %v", field, ve.Fields)
		}
	}
}

func TestAuthServiceLogin(t *testing.T) {
	hash, err := auth.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := &stubUsersStore{
		t: t,
		getUserByLoginFunc: func(_ context.Context, login string) (domain.UserWithPassword, error) {
			switch login {
			case "jane":
				return domain.UserWithPassword{User: domain.User{ID: "user-1", Status: domain.UserStatusActive}, PasswordHash: hash}, nil
			case "banned":
				return domain.UserWithPassword{User: domain.User{ID: "user-2", Status: domain.UserStatusDisabled}, PasswordHash: hash}, nil
			}
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
	}
	sessions := &stubSessionsStore{
		t: t,
		createSessionFunc: func(context.Context, string, time.Time, string, string) (string, error) {
			return "sess-1", nil
		},
	}
	svc := &AuthService{Users: users, Sessions: sessions, SessionTTL: time.Hour}
	ctx := context.Background()

	if _, sessID, err := svc.Login(ctx, " jane ", "correct-password", testClient); err != nil || sessID != "sess-1" {
		t.Fatalf("expected login to succeed, got %s %v", sessID, err)
	}
	if _, _, err := svc.Login(ctx, "jane", "wrong-password", testClient); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "correct-password", testClient); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "banned", "correct-password", testClient); !errors.Is(err, domain.ErrUserDisabled) {
		t.Fatalf("expected user disabled, got %v", err)
	}
}

func TestAuthServiceLoginWithGoogleExistingAccount(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	users := &stubUsersStore{
		t: t,
		getUserByExternalFunc: func(_ context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
			if provider != auth.ProviderGoogle || providerID != "sub-123" {
				t.Fatalf("unexpected provider lookup: %s %s", provider, providerID)
			}
			return domain.User{ID: "user-1", Email: "player@example.com", Username: "player"}, domain.ExternalAccount{}, nil
		},
		setLastLoginFunc: func(_ context.Context, userID string, when time.Time) error {
			if userID != "user-1" || !when.Equal(now) {
				t.Fatalf("unexpected last login: %s %s", userID, when)
			}
			return nil
		},
	}
	sessions := &stubSessionsStore{
		t: t,
		createSessionFunc: func(_ context.Context, userID string, expiresAt time.Time, _, _ string) (string, error) {
			if userID != "user-1" || !expiresAt.Equal(now.Add(24*time.Hour)) {
				t.Fatalf("unexpected session args")
			}
			return "sess-1", nil
		},
	}

	svc := &AuthService{
		Users:             users,
		Sessions:          sessions,
		SessionTTL:        24 * time.Hour,
		Now:               func() time.Time { return now },
		GoogleWebClientID: "google-client",
		VerifyGoogleIDToken: func(_ context.Context, token, aud string) (*auth.ExternalTokenClaims, error) {
			if token != "token-123" || aud != "google-client" {
				t.Fatalf("unexpected token/aud")
			}
			return &auth.ExternalTokenClaims{Subject: "sub-123", Email: "Player@Example.com"}, nil
		},
	}

	user, sessID, err := svc.LoginWithGoogle(context.Background(), "token-123", testClient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" || sessID != "sess-1" {
		t.Fatalf("unexpected login result: %+v %s", user, sessID)
	}
}

func TestAuthServiceLoginWithGoogleCreatesUser(t *testing.T) {
	attempts := 0
	users := &stubUsersStore{
		t: t,
		getUserByExternalFunc: func(context.Context, string, string) (domain.User, domain.ExternalAccount, error) {
			return domain.User{}, domain.ExternalAccount{}, domain.ErrNotFound
		},
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			if email != "jane.doe@example.com" {
				t.Fatalf("unexpected email lookup: %s", email)
			}
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		createUserWithExternalFunc: func(_ context.Context, nu domain.NewUser, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
			attempts++
			if provider != auth.ProviderGoogle || providerID != "sub-456" || nu.Email != "jane.doe@example.com" {
				t.Fatalf("unexpected create args: %+v %s %s", nu, provider, providerID)
			}
			if nu.PasswordHash == "" || !validUsername(nu.Username) || !strings.HasPrefix(nu.Username, "jane_doe_") {
				t.Fatalf("unexpected username or password hash: %q", nu.Username)
			}
			if attempts == 1 {
				return domain.User{}, domain.ExternalAccount{}, domain.ErrUsernameTaken
			}
			return domain.User{ID: "user-2", Email: nu.Email, Username: nu.Username}, domain.ExternalAccount{}, nil
		},
	}
	sessions := &stubSessionsStore{
		t: t,
		createSessionFunc: func(_ context.Context, userID string, _ time.Time, _, _ string) (string, error) {
			if userID != "user-2" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			return "sess-2", nil
		},
	}

	svc := &AuthService{
		Users:             users,
		Sessions:          sessions,
		SessionTTL:        24 * time.Hour,
		GoogleWebClientID: "google-client",
		VerifyGoogleIDToken: func(context.Context, string, string) (*auth.ExternalTokenClaims, error) {
			return &auth.ExternalTokenClaims{Subject: "sub-456", Email: "jane.doe@example.com"}, nil
		},
	}

	user, sessID, err := svc.LoginWithGoogle(context.Background(), "token-456", testClient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-2" || sessID != "sess-2" || attempts != 2 {
		t.Fatalf("unexpected login result: %+v %s attempts=%d", user, sessID, attempts)
	}
}

func TestAuthServiceLoginWithGoogleInvalidToken(t *testing.T) {
	svc := &AuthService{
		Users:             &stubUsersStore{t: t},
		Sessions:          &stubSessionsStore{t: t},
		SessionTTL:        time.Hour,
		GoogleWebClientID: "google-client",
		VerifyGoogleIDToken: func(context.Context, string, string) (*auth.ExternalTokenClaims, error) {
			return nil, errors.New("bad token")
		},
	}

	_, _, err := svc.LoginWithGoogle(context.Background(), "bad-token", testClient)
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	svc.GoogleWebClientID = ""
	if _, _, err := svc.LoginWithGoogle(context.Background(), "token", testClient); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected unconfigured provider to reject, got %v", err)
	}
}

func TestAuthServiceLoginWithAppleLinkConflict(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByExternalFunc: func(context.Context, string, string) (domain.User, domain.ExternalAccount, error) {
			return domain.User{}, domain.ExternalAccount{}, domain.ErrNotFound
		},
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "user-3", Email: email, Username: "player"}}, nil
		},
		linkExternalAccountFunc: func(context.Context, string, string, string, string) (domain.ExternalAccount, error) {
			return domain.ExternalAccount{}, domain.ErrExternalAccountExists
		},
	}
	svc := &AuthService{
		Users:          users,
		Sessions:       &stubSessionsStore{t: t},
		SessionTTL:     time.Hour,
		AppleServiceID: "apple-service",
		VerifyAppleIDToken: func(context.Context, string, string) (*auth.ExternalTokenClaims, error) {
			return &auth.ExternalTokenClaims{Subject: "apple-sub", Email: "player@example.com"}, nil
		},
	}

	_, _, err := svc.LoginWithApple(context.Background(), "token", testClient)
	if !errors.Is(err, domain.ErrExternalAccountExists) {
		t.Fatalf("expected external account exists, got %v", err)
	}
}

func TestAuthServiceGetUserForSession(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			if id == "disabled" {
				return domain.User{ID: id, Status: domain.UserStatusDisabled}, nil
			}
			return domain.User{ID: id, Status: domain.UserStatusActive}, nil
		},
	}
	sessions := &stubSessionsStore{
		t: t,
		getSessionFunc: func(_ context.Context, sessionID string) (domain.Session, error) {
			switch sessionID {
			case "sess-ok":
				return domain.Session{ID: sessionID, UserID: "user-1"}, nil
			case "sess-disabled":
				return domain.Session{ID: sessionID, UserID: "disabled"}, nil
			}
			return domain.Session{}, domain.ErrNotFound
		},
	}
	svc := &AuthService{Users: users, Sessions: sessions}
	ctx := context.Background()

	if u, err := svc.GetUserForSession(ctx, "sess-ok"); err != nil || u.ID != "user-1" {
		t.Fatalf("unexpected result: %+v %v", u, err)
	}
	if _, err := svc.GetUserForSession(ctx, "sess-gone"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.GetUserForSession(ctx, "sess-disabled"); !errors.Is(err, domain.ErrUserDisabled) {
		t.Fatalf("expected user disabled, got %v", err)
	}
}

func TestGenerateUsername(t *testing.T) {
	for _, email := range []string{"jane.doe+tag@example.com", "", "a@b.c", strings.Repeat("x", 60) + "@example.com"} {
		got := generateUsername(email)
		if !validUsername(got) {
			t.Fatalf("generateUsername(%q) = %q is not a valid username", email, got)
		}
	}
}
