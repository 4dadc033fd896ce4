package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

type captureTransport struct {
	status   int
	respBody string
	req      *http.Request
	body     []byte
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.req = req
	t.body, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	status := t.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(t.respBody)),
		Header:     make(http.Header),
	}, nil
}

func testSender(rt http.RoundTripper) *FCMSender {
	return &FCMSender{
		endpoint:    "https://fcm.example/v1/projects/pid/messages:send",
		tokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access"}),
		client:      &http.Client{Transport: rt},
	}
}

func decodeSent(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	message, _ := payload["message"].(map[string]any)
	if message == nil {
		t.Fatalf("missing message payload")
	}
	return message
}

func TestFCMSenderAlertIncludesAPNSHeaders(t *testing.T) {
	rt := &captureTransport{respBody: `{}`}
	err := testSender(rt).Send(context.Background(), "device-1", Message{
		Data:         map[string]string{"type": "friend_request"},
		Notification: &Notification{Title: "Friend request", Body: "alice sent you a friend request."},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got := rt.req.Header.Get("Authorization"); got != "Bearer access" {
		t.Fatalf("unexpected authorization header: %q", got)
	}

	message := decodeSent(t, rt.body)
	if message["token"] != "device-1" {
		t.Fatalf("unexpected token: %v", message["token"])
	}
	notification, _ := message["notification"].(map[string]any)
	if notification == nil || notification["title"] != "Friend request" {
		t.Fatalf("unexpected notification: %v", message["notification"])
	}
	apns, _ := message["apns"].(map[string]any)
	headers, _ := apns["headers"].(map[string]any)
	if headers["apns-push-type"] != "alert" || headers["apns-priority"] != "10" {
		t.Fatalf("unexpected apns headers: %v", headers)
	}
}

func TestFCMSenderDataOnlyOmitsAlert(t *testing.T) {
	rt := &captureTransport{respBody: `{}`}
	if err := testSender(rt).Send(context.Background(), "device-1", Message{Data: map[string]string{"k": "v"}}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	message := decodeSent(t, rt.body)
	if _, ok := message["notification"]; ok {
		t.Fatalf("expected no notification block")
	}
	if _, ok := message["apns"]; ok {
		t.Fatalf("expected no apns block")
	}
	android, _ := message["android"].(map[string]any)
	if android["priority"] != "HIGH" {
		t.Fatalf("unexpected android config: %v", message["android"])
	}
}

func TestFCMSenderUnregisteredToken(t *testing.T) {
	rt := &captureTransport{
		status:   http.StatusNotFound,
		respBody: `{"error":{"status":"NOT_FOUND","message":"Requested entity was not found.","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`,
	}
	err := testSender(rt).Send(context.Background(), "stale", Message{})
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestFCMSenderServerError(t *testing.T) {
	rt := &captureTransport{status: http.StatusInternalServerError, respBody: `oops`}
	err := testSender(rt).Send(context.Background(), "device-1", Message{})
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected generic failure, got %v", err)
	}
}

func TestFCMSenderRequiresToken(t *testing.T) {
	if err := testSender(&captureTransport{}).Send(context.Background(), " ", Message{}); err == nil {
		t.Fatalf("expected error for blank token")
	}
}
