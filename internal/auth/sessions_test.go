package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSessionCodecSignAndVerify(t *testing.T) {
	codec := NewSessionCodec([]byte(strings.Repeat("k", 32)))

	token := codec.Sign("sess-1")
	if token == "sess-1" {
		t.Fatalf("expected signed token")
	}
	if id, ok := codec.Verify(token); !ok || id != "sess-1" {
		t.Fatalf("expected signed token to verify, got %q %v", id, ok)
	}
	if _, ok := codec.Verify(token + "x"); ok {
		t.Fatalf("expected tampered token to fail")
	}
	if _, ok := codec.Verify("sess-1"); ok {
		t.Fatalf("expected unsigned token to fail when a secret is set")
	}

	other := NewSessionCodec([]byte(strings.Repeat("z", 32)))
	if _, ok := other.Verify(token); ok {
		t.Fatalf("expected token signed with another secret to fail")
	}
}

func TestSessionCodecWithoutSecret(t *testing.T) {
	codec := NewSessionCodec(nil)
	if got := codec.Sign("abc"); got != "abc" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if id, ok := codec.Verify("abc"); !ok || id != "abc" {
		t.Fatalf("expected passthrough verify")
	}
	if _, ok := codec.Verify(""); ok {
		t.Fatalf("expected empty token to fail")
	}
}

func TestSessionTokenPrefersBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-cookie"})
	if got := SessionToken(r); got != "from-cookie" {
		t.Fatalf("expected cookie token, got %q", got)
	}

	r.Header.Set("Authorization", "bearer from-header")
	if got := SessionToken(r); got != "from-header" {
		t.Fatalf("expected bearer token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	if got := SessionToken(r); got != "" {
		t.Fatalf("expected no token for basic auth, got %q", got)
	}
}

func TestSessionCookieHelpers(t *testing.T) {
	opts := CookieOptions{TTL: 10 * time.Minute}

	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "v", opts)
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode || cookies[0].MaxAge != 600 {
		t.Fatalf("unexpected cookie attributes: %+v", cookies[0])
	}

	rr = httptest.NewRecorder()
	ClearSessionCookie(rr, opts)
	cookies = rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Fatalf("expected cleared cookie, got %+v", cookies)
	}
}
