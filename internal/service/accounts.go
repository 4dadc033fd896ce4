package service

import (
	"strings"
	"unicode/utf8"

	"FriendsWebServer/internal/auth"
	"FriendsWebServer/internal/domain"

	"github.com/google/uuid"
)

const (
	minUsernameLen    = 3
	maxUsernameLen    = 24
	maxDisplayNameLen = 64
)

func validateRegistration(in RegisterInput) (domain.NewUser, error) {
	nu := domain.NewUser{
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Username:    strings.TrimSpace(in.Username),
		DisplayName: strings.TrimSpace(in.DisplayName),
		Gender:      domain.Gender(strings.ToLower(strings.TrimSpace(string(in.Gender)))),
	}

	fields := map[string]string{}
	if !validUsername(nu.Username) {
		fields["username"] = "must be 3-24 characters of letters, digits or underscore"
	}
	if nu.Email != "" && !strings.Contains(nu.Email, "@") {
		fields["email"] = "invalid"
	}
	if utf8.RuneCountInString(in.Password) < auth.MinPasswordLength {
		fields["password"] = "too short"
	}
	if utf8.RuneCountInString(nu.DisplayName) > maxDisplayNameLen {
		fields["display_name"] = "too long"
	}
	if !nu.Gender.Valid() {
		fields["gender"] = "invalid"
	}
	if len(fields) > 0 {
		return domain.NewUser{}, domain.NewValidationError(fields)
	}

	if nu.DisplayName == "" {
		nu.DisplayName = nu.Username
	}
	return nu, nil
}

func validUsername(s string) bool {
	if len(s) < minUsernameLen || len(s) > maxUsernameLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// generateUsername derives a valid username from the email local part plus a
// random suffix, e.g. "jane_doe_3fa2c1".
func generateUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '+':
			b.WriteByte('_')
		}
	}
	base := b.String()
	if len(base) < minUsernameLen {
		base = "user"
	}
	base = base[:min(len(base), maxUsernameLen-7)]
	return base + "_" + randomSuffix(6)
}

func randomSuffix(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	for len(s) < n {
		s += strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return s[:n]
}
