package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"FriendsWebServer/internal/auth"
	"FriendsWebServer/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, nu domain.NewUser) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	SetLastLogin(ctx context.Context, userID string, when time.Time) error
	GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error)
	CreateUserWithExternalAccount(ctx context.Context, nu domain.NewUser, provider, providerID string) (domain.User, domain.ExternalAccount, error)
	LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error)
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
}

type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	SessionTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time

	GoogleWebClientID   string
	AppleServiceID      string
	VerifyGoogleIDToken auth.IDTokenVerifier
	VerifyAppleIDToken  auth.IDTokenVerifier
}

type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
	Gender      domain.Gender
}

// ClientInfo identifies the device a session was opened from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (domain.User, string, error) {
	nu, err := validateRegistration(in)
	if err != nil {
		return domain.User{}, "", err
	}

	nu.PasswordHash, err = auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.CreateUser(ctx, nu)
	if err != nil {
		return domain.User{}, "", err
	}

	sessID, err := s.openSession(ctx, u.ID, client)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, sessID, nil
}

func (s *AuthService) Login(ctx context.Context, login, password string, client ClientInfo) (domain.User, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	u, err := s.Users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}
	if u.Status == domain.UserStatusDisabled {
		return domain.User{}, "", domain.ErrUserDisabled
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	sessID, err := s.openSession(ctx, u.ID, client)
	if err != nil {
		return domain.User{}, "", err
	}
	return u.User, sessID, nil
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken string, client ClientInfo) (domain.User, string, error) {
	return s.loginExternal(ctx, auth.ProviderGoogle, idToken, s.GoogleWebClientID, s.VerifyGoogleIDToken, client)
}

func (s *AuthService) LoginWithApple(ctx context.Context, idToken string, client ClientInfo) (domain.User, string, error) {
	return s.loginExternal(ctx, auth.ProviderApple, idToken, s.AppleServiceID, s.VerifyAppleIDToken, client)
}

// loginExternal resolves a provider identity to a local user: an existing link
// wins, then a user with the same verified email gets linked, otherwise a new
// user is created.
func (s *AuthService) loginExternal(ctx context.Context, provider, idToken, audience string, verify auth.IDTokenVerifier, client ClientInfo) (domain.User, string, error) {
	if verify == nil || audience == "" {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	claims, err := verify(ctx, idToken, audience)
	if err != nil || claims == nil || claims.Subject == "" {
		s.logger().Info("external token rejected", "provider", provider, "err", err)
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))

	u, _, err := s.Users.GetUserByExternalAccount(ctx, provider, claims.Subject)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		u, err = s.linkOrCreate(ctx, provider, claims.Subject, email)
		if err != nil {
			return domain.User{}, "", err
		}
	default:
		return domain.User{}, "", err
	}

	if u.Status == domain.UserStatusDisabled {
		return domain.User{}, "", domain.ErrUserDisabled
	}
	sessID, err := s.openSession(ctx, u.ID, client)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, sessID, nil
}

func (s *AuthService) linkOrCreate(ctx context.Context, provider, subject, email string) (domain.User, error) {
	if email != "" {
		existing, err := s.Users.GetUserByEmail(ctx, email)
		if err == nil {
			if _, err := s.Users.LinkExternalAccount(ctx, existing.ID, provider, subject, email); err != nil {
				return domain.User{}, err
			}
			return existing.User, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, err
		}
	}

	// External users never log in with a password; store an unguessable one.
	hash, err := auth.HashPassword(randomSuffix(32))
	if err != nil {
		return domain.User{}, err
	}

	const attempts = 3
	for range attempts {
		username := generateUsername(email)
		u, _, err := s.Users.CreateUserWithExternalAccount(ctx, domain.NewUser{
			Email:        email,
			Username:     username,
			DisplayName:  username,
			PasswordHash: hash,
		}, provider, subject)
		if errors.Is(err, domain.ErrUsernameTaken) {
			continue
		}
		return u, err
	}
	return domain.User{}, fmt.Errorf("create %s user: %w", provider, domain.ErrUsernameTaken)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, s.now())
}

func (s *AuthService) GetUserForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	if u.Status == domain.UserStatusDisabled {
		return domain.User{}, domain.ErrUserDisabled
	}
	return u, nil
}

func (s *AuthService) openSession(ctx context.Context, userID string, client ClientInfo) (string, error) {
	now := s.now()
	sessID, err := s.Sessions.CreateSession(ctx, userID, now.Add(s.SessionTTL), client.IP, client.UserAgent)
	if err != nil {
		return "", err
	}
	if err := s.Users.SetLastLogin(ctx, userID, now); err != nil {
		s.logger().Warn("set last login failed", "err", err, "user_id", userID)
	}
	return sessID, nil
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
