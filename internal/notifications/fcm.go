// Package notifications delivers push messages through Firebase Cloud Messaging.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope    = "https://www.googleapis.com/auth/firebase.messaging"
	fcmEndpoint = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
)

// ErrInvalidToken means the device token is no longer registered and should
// be forgotten.
var ErrInvalidToken = errors.New("fcm: invalid token")

// Message is one push. Data always travels; Notification adds a visible alert.
type Message struct {
	Data         map[string]string
	Notification *Notification
}

type Notification struct {
	Title string
	Body  string
}

type FCMSender struct {
	endpoint    string
	tokenSource oauth2.TokenSource
	client      *http.Client
}

func NewFCMSender(ctx context.Context, projectID, credentialsPath string) (*FCMSender, error) {
	if strings.TrimSpace(credentialsPath) == "" {
		return nil, errors.New("fcm credentials path required")
	}
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read fcm credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("load fcm credentials: %w", err)
	}
	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		return nil, errors.New("fcm project id required")
	}
	return &FCMSender{
		endpoint:    fmt.Sprintf(fcmEndpoint, projectID),
		tokenSource: oauth2.ReuseTokenSource(nil, creds.TokenSource),
		client:      &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *FCMSender) Send(ctx context.Context, token string, msg Message) error {
	if s == nil {
		return errors.New("fcm sender not configured")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("fcm token required")
	}

	body, err := json.Marshal(fcmRequest{Message: buildMessage(token, msg)})
	if err != nil {
		return fmt.Errorf("marshal fcm payload: %w", err)
	}
	access, err := s.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("fcm access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return decodeFCMError(resp.StatusCode, raw)
}

func buildMessage(token string, msg Message) fcmMessage {
	out := fcmMessage{
		Token:   token,
		Data:    msg.Data,
		Android: &fcmAndroidConfig{Priority: "HIGH"},
	}
	if msg.Notification != nil {
		out.Notification = &fcmNotification{Title: msg.Notification.Title, Body: msg.Notification.Body}
		out.APNS = &fcmAPNSConfig{
			Headers: map[string]string{"apns-push-type": "alert", "apns-priority": "10"},
			Payload: map[string]any{"aps": map[string]any{"sound": "default"}},
		}
	}
	return out
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Data         map[string]string `json:"data,omitempty"`
	Notification *fcmNotification  `json:"notification,omitempty"`
	Android      *fcmAndroidConfig `json:"android,omitempty"`
	APNS         *fcmAPNSConfig    `json:"apns,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type fcmAndroidConfig struct {
	Priority string `json:"priority,omitempty"`
}

type fcmAPNSConfig struct {
	Headers map[string]string `json:"headers,omitempty"`
	Payload map[string]any    `json:"payload,omitempty"`
}

type fcmErrorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func decodeFCMError(status int, body []byte) error {
	var resp fcmErrorResponse
	if len(body) == 0 || json.Unmarshal(body, &resp) != nil {
		return fmt.Errorf("fcm send failed: status %d: %s", status, body)
	}
	for _, d := range resp.Error.Details {
		if d.ErrorCode == "UNREGISTERED" {
			return fmt.Errorf("%w: %s", ErrInvalidToken, resp.Error.Message)
		}
	}
	if status == http.StatusNotFound && resp.Error.Status == "NOT_FOUND" {
		return fmt.Errorf("%w: %s", ErrInvalidToken, resp.Error.Message)
	}
	return fmt.Errorf("fcm send failed: status %d: %s", status, resp.Error.Message)
}
