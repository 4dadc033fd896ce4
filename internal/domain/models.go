package domain

import "time"

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderUnspecified, GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type User struct {
	ID          string
	Email       string
	Username    string
	DisplayName string
	Gender      Gender
	AvatarPath  string
	Status      UserStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// Profile returns the public directory fields of u.
func (u User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Gender:      u.Gender,
		AvatarPath:  u.AvatarPath,
	}
}

type UserWithPassword struct {
	User
	PasswordHash string
}

type NewUser struct {
	Email        string
	Username     string
	DisplayName  string
	Gender       Gender
	PasswordHash string
}

type ExternalAccount struct {
	ID         string
	UserID     string
	Provider   string
	ProviderID string
	Email      string
	CreatedAt  time.Time
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}
