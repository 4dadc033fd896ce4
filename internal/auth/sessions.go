// Package auth holds session token signing, password hashing and third-party
// identity token verification.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const SessionCookieName = "friends_session"

// SessionCodec signs session ids so a client cannot forge one. With an empty
// secret ids pass through unsigned, which is only meant for development.
type SessionCodec struct {
	secret []byte
}

func NewSessionCodec(secret []byte) SessionCodec {
	return SessionCodec{secret: append([]byte(nil), secret...)}
}

func (c SessionCodec) Sign(sessionID string) string {
	if len(c.secret) == 0 {
		return sessionID
	}
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(c.mac(sessionID))
}

func (c SessionCodec) Verify(token string) (string, bool) {
	if len(c.secret) == 0 {
		return token, token != ""
	}

	id, sig, ok := strings.Cut(token, ".")
	if !ok || id == "" || sig == "" {
		return "", false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || len(got) != sha256.Size {
		return "", false
	}
	if subtle.ConstantTimeCompare(got, c.mac(id)) != 1 {
		return "", false
	}
	return id, true
}

func (c SessionCodec) mac(id string) []byte {
	m := hmac.New(sha256.New, c.secret)
	_, _ = m.Write([]byte(id))
	return m.Sum(nil)
}

// SessionToken extracts the signed session token from a request. Browsers send
// the cookie; mobile clients send "Authorization: Bearer <token>".
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

func SetSessionCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(opts.TTL.Seconds()),
		Expires:  time.Now().Add(opts.TTL),
	})
}

func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
