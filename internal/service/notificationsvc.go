package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"FriendsWebServer/internal/domain"
	"FriendsWebServer/internal/notifications"
)

type NotificationTokensStore interface {
	UpsertToken(ctx context.Context, userID, token string, platform domain.PushPlatform, when time.Time) (domain.NotificationToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
	ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, msg notifications.Message) error
}

var errNotificationsUnavailable = errors.New("notifications unavailable")

// NotificationService manages device tokens and pushes relationship events to
// the affected user. It satisfies RelationshipNotifier.
type NotificationService struct {
	Tokens NotificationTokensStore
	Users  UserLookup
	Sender PushSender
	Logger *slog.Logger
	Now    func() time.Time
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID, token, platform string) (domain.NotificationToken, error) {
	if s.Tokens == nil {
		return domain.NotificationToken{}, errNotificationsUnavailable
	}

	token = strings.TrimSpace(token)
	p := domain.PushPlatform(strings.ToLower(strings.TrimSpace(platform)))
	fields := map[string]string{}
	if token == "" {
		fields["token"] = "required"
	}
	switch p {
	case domain.PlatformAndroid, domain.PlatformIOS:
	case "":
		fields["platform"] = "required"
	default:
		fields["platform"] = "must be ios or android"
	}
	if len(fields) > 0 {
		return domain.NotificationToken{}, domain.NewValidationError(fields)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.Tokens.UpsertToken(ctx, userID, token, p, now().UTC().Truncate(time.Millisecond))
}

func (s *NotificationService) DeleteToken(ctx context.Context, userID, token string) error {
	if s.Tokens == nil {
		return errNotificationsUnavailable
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError(map[string]string{"token": "required"})
	}
	return s.Tokens.DeleteToken(ctx, userID, token)
}

// NotifyFriendRequest tells the receiver that the requester wants to connect.
func (s *NotificationService) NotifyFriendRequest(ctx context.Context, rel domain.Relationship) error {
	return s.push(ctx, rel.ReceiverID, rel.RequesterID, func(name string) pushContent {
		return pushContent{
			kind:  "friend_request",
			title: "Friend request",
			body:  name + " sent you a friend request.",
			relID: rel.ID,
		}
	})
}

// NotifyRequestAccepted tells the original requester that the receiver accepted.
func (s *NotificationService) NotifyRequestAccepted(ctx context.Context, rel domain.Relationship) error {
	return s.push(ctx, rel.RequesterID, rel.ReceiverID, func(name string) pushContent {
		return pushContent{
			kind:  "friend_accepted",
			title: "New friend",
			body:  name + " accepted your friend request.",
			relID: rel.ID,
		}
	})
}

type pushContent struct {
	kind  string
	title string
	body  string
	relID string
}

func (s *NotificationService) push(ctx context.Context, recipientID, actorID string, content func(name string) pushContent) error {
	if s.Tokens == nil || s.Sender == nil || s.Users == nil {
		return nil
	}
	logger := s.logger()

	tokens, err := s.Tokens.ListTokens(ctx, recipientID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	actor, err := s.Users.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(actor.DisplayName)
	if name == "" {
		name = actor.Username
	}

	c := content(name)
	data := map[string]string{
		"type":            c.kind,
		"relationship_id": c.relID,
		"user_id":         actor.ID,
		"username":        actor.Username,
		"display_name":    name,
	}

	// Android apps render data-only messages themselves; iOS needs the alert.
	for _, t := range tokens {
		msg := notifications.Message{Data: data}
		if t.Platform == domain.PlatformIOS {
			msg.Notification = &notifications.Notification{Title: c.title, Body: c.body}
		}

		err := s.Sender.Send(ctx, t.Token, msg)
		switch {
		case err == nil:
		case errors.Is(err, notifications.ErrInvalidToken):
			if delErr := s.Tokens.DeleteToken(ctx, recipientID, t.Token); delErr != nil {
				logger.Error("delete invalid push token failed", "err", delErr, "user_id", recipientID)
			}
		default:
			logger.Error("push send failed", "err", err, "user_id", recipientID, "type", c.kind)
		}
	}
	return nil
}

func (s *NotificationService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
