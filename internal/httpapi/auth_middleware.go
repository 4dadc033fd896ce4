package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"FriendsWebServer/internal/auth"
	"FriendsWebServer/internal/domain"
	"FriendsWebServer/internal/service"
)

type authCtxKey int

const (
	authUserKey authCtxKey = iota
	authSessionKey
)

func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.SessionToken(r)
		if token == "" {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		sessID, ok := a.sessionCodec.Verify(token)
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		u, err := a.authSvc.GetUserForSession(r.Context(), sessID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		setRequestUser(r.Context(), u.ID)
		ctx := context.WithValue(r.Context(), authUserKey, u)
		ctx = context.WithValue(ctx, authSessionKey, sessID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}

func CurrentSessionID(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(authSessionKey).(string)
	return s, ok
}

func clientInfo(r *http.Request) service.ClientInfo {
	return service.ClientInfo{IP: clientIP(r), UserAgent: r.UserAgent()}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
