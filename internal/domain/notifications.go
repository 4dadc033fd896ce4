package domain

import "time"

type PushPlatform string

const (
	PlatformAndroid PushPlatform = "android"
	PlatformIOS     PushPlatform = "ios"
)

type NotificationToken struct {
	UserID    string       `json:"-"`
	Token     string       `json:"token"`
	Platform  PushPlatform `json:"platform"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
