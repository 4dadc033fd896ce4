package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FriendsWebServer/internal/auth"
	"FriendsWebServer/internal/domain"
	"FriendsWebServer/internal/metrics"
	"FriendsWebServer/internal/service"
	"FriendsWebServer/internal/store/memory"
)

var fastArgon2 = auth.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type routerFixture struct {
	handler  http.Handler
	metrics  *metrics.Metrics
	sessions *fakeSessions
	codec    auth.SessionCodec
	alice    domain.User
	bob      domain.User
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	dir := memory.NewDirectory()
	rels := memory.NewRelationshipsStore()
	alice := dir.Add(domain.User{Username: "alice", DisplayName: "Alice"})
	bob := dir.Add(domain.User{Username: "bob"})

	hash, err := fastArgon2.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	users := &stubUsersStore{
		t:           t,
		getByIDFunc: dir.GetUserByID,
		getLoginFunc: func(_ context.Context, login string) (domain.UserWithPassword, error) {
			if login != "alice" {
				return domain.UserWithPassword{}, domain.ErrNotFound
			}
			return domain.UserWithPassword{User: alice, PasswordHash: hash}, nil
		},
	}
	sessions := newFakeSessions()
	codec := auth.NewSessionCodec([]byte("test-secret"))
	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewRouter(RouterOpts{
		Logger:  logger,
		Metrics: m,
		Auth: &service.AuthService{
			Users:      users,
			Sessions:   sessions,
			SessionTTL: time.Hour,
		},
		Relationships: &service.RelationshipService{Store: rels, Users: dir, Metrics: m},
		Views:         &service.RelationshipViews{Relationships: rels, Directory: dir},
		SessionCodec:  codec,
		SessionTTL:    time.Hour,
	})
	return &routerFixture{handler: h, metrics: m, sessions: sessions, codec: codec, alice: alice, bob: bob}
}

func (f *routerFixture) do(method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouterLoginThenFriendRequest(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(http.MethodPost, "/v1/auth/login", `{"login":"alice","password":"correct horse"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}
	var sess sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&sess); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if sess.Token == "" || sess.User.ID != f.alice.ID {
		t.Fatalf("unexpected login response: %+v", sess)
	}
	if c := rr.Result().Cookies(); len(c) != 1 || c[0].Name != auth.SessionCookieName || c[0].Value != sess.Token {
		t.Fatalf("expected session cookie, got %+v", c)
	}

	rr = f.do(http.MethodPost, "/v1/friends/request", `{"user_id":"`+f.bob.ID+`"}`, sess.Token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("friend request: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}

	rr = f.do(http.MethodGet, "/v1/users", "", sess.Token)
	if rr.Code != http.StatusOK {
		t.Fatalf("browse: unexpected status %d", rr.Code)
	}
	var browse listResponse[domain.UserWithLabel]
	if err := json.NewDecoder(rr.Body).Decode(&browse); err != nil {
		t.Fatalf("decode browse: %v", err)
	}
	if len(browse.Data) != 1 || browse.Data[0].ID != f.bob.ID || browse.Data[0].RelationshipStatus != domain.LabelPendingSent {
		t.Fatalf("unexpected browse result: %+v", browse.Data)
	}

	rr = f.do(http.MethodPost, "/v1/auth/logout", "", sess.Token)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout: unexpected status %d", rr.Code)
	}
	rr = f.do(http.MethodGet, "/v1/users/me", "", sess.Token)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: unexpected status %d", rr.Code)
	}
}

func TestRouterLoginInvalidCredentials(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(http.MethodPost, "/v1/auth/login", `{"login":"alice","password":"wrong password"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "invalid_credentials" {
		t.Fatalf("unexpected error code: %s", e.Code)
	}
}

func TestRouterRequiresSession(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(http.MethodGet, "/v1/friends", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: unexpected status %d", rr.Code)
	}

	rr = f.do(http.MethodGet, "/v1/friends", "", "sess-forged.AAAA")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: unexpected status %d", rr.Code)
	}

	id, _ := f.sessions.CreateSession(context.Background(), f.alice.ID, time.Now().Add(time.Hour), "", "")
	rr = f.do(http.MethodGet, "/v1/friends", "", f.codec.Sign(id))
	if rr.Code != http.StatusOK {
		t.Fatalf("signed token: unexpected status %d", rr.Code)
	}
}

func TestRouterUsersRoutes(t *testing.T) {
	f := newRouterFixture(t)
	id, _ := f.sessions.CreateSession(context.Background(), f.alice.ID, time.Now().Add(time.Hour), "", "")
	token := f.codec.Sign(id)

	rr := f.do(http.MethodGet, "/v1/users/me", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: unexpected status %d", rr.Code)
	}
	var me userResponse
	if err := json.NewDecoder(rr.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != f.alice.ID || me.Username != "alice" {
		t.Fatalf("unexpected me: %+v", me)
	}

	rr = f.do(http.MethodGet, "/v1/users/"+f.bob.ID, "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("get profile: unexpected status %d", rr.Code)
	}
	var p domain.Profile
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if p.Username != "bob" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	rr = f.do(http.MethodGet, "/v1/users/does-not-exist", "", token)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing profile: unexpected status %d", rr.Code)
	}
}

func TestRouterUnknownV1RouteIsJSON404(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(http.MethodGet, "/v1/nope", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "not_found" {
		t.Fatalf("unexpected error code: %s", e.Code)
	}
}

func TestRouterWithoutServicesIsNotImplemented(t *testing.T) {
	h := NewRouter(RouterOpts{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/friends"},
		{http.MethodPost, "/v1/friends/block"},
		{http.MethodPost, "/v1/auth/login"},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("%s %s: unexpected status %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestRouterHealthz(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewRouter(RouterOpts{Logger: logger, DBPing: func(context.Context) error { return nil }})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthy: unexpected response %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header")
	}

	h = NewRouter(RouterOpts{Logger: logger, DBPing: func(context.Context) error { return errors.New("down") }})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: unexpected status %d", rr.Code)
	}

	h = NewRouter(RouterOpts{
		Logger:    logger,
		DBPing:    func(context.Context) error { return nil },
		CachePing: func(context.Context) error { return errors.New("redis down") },
	})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok (cache down)" {
		t.Fatalf("cache down: unexpected response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterRecordsMetricsByPattern(t *testing.T) {
	f := newRouterFixture(t)
	id, _ := f.sessions.CreateSession(context.Background(), f.alice.ID, time.Now().Add(time.Hour), "", "")

	f.do(http.MethodGet, "/v1/users/"+f.bob.ID, "", f.codec.Sign(id))
	f.do(http.MethodGet, "/v1/nope", "", "")

	rr := f.do(http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: unexpected status %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",route="GET /v1/users/{id}",status="200"} 1`,
		`http_requests_total{method="GET",route="unmatched",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
