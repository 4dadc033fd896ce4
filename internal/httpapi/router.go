package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"FriendsWebServer/internal/auth"
	"FriendsWebServer/internal/metrics"
	"FriendsWebServer/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error
	// CachePing is optional; a failing cache degrades /healthz without failing it.
	CachePing func(context.Context) error

	Metrics       *metrics.Metrics
	Auth          *service.AuthService
	Relationships *service.RelationshipService
	Views         *service.RelationshipViews
	Notifications *service.NotificationService
	SessionCodec  auth.SessionCodec
	CookieSecure  bool
	SessionTTL    time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:           logger,
		isProd:           opts.IsProd,
		dbPing:           opts.DBPing,
		cachePing:        opts.CachePing,
		authSvc:          opts.Auth,
		relSvc:           opts.Relationships,
		viewSvc:          opts.Views,
		notificationsSvc: opts.Notifications,
		sessionCodec:     opts.SessionCodec,
		cookieOpts:       auth.CookieOptions{TTL: opts.SessionTTL, Secure: opts.CookieSecure},
		loginLimiter:     newLoginLimiter(10, 5*time.Minute),
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)
	if opts.Metrics != nil {
		publicMux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	if api.authSvc == nil {
		for _, pattern := range []string{
			"POST /v1/auth/register",
			"POST /v1/auth/login",
			"POST /v1/auth/google",
			"POST /v1/auth/apple",
			"POST /v1/auth/logout",
			"GET /v1/users/me",
			"GET /v1/users",
			"GET /v1/users/{id}",
			"GET /v1/friends",
			"GET /v1/friends/pending",
			"POST /v1/friends/request",
			"POST /v1/friends/accept",
			"POST /v1/friends/reject",
			"POST /v1/friends/block",
			"POST /v1/friends/unblock",
			"PUT /v1/notifications/token",
			"DELETE /v1/notifications/token",
		} {
			apiMux.HandleFunc(pattern, handleNotImplemented)
		}
	} else {
		apiMux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
		apiMux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
		apiMux.HandleFunc("POST /v1/auth/google", api.handleAuthLoginGoogle)
		apiMux.HandleFunc("POST /v1/auth/apple", api.handleAuthLoginApple)
		apiMux.HandleFunc("POST /v1/auth/logout", api.requireAuth(api.handleAuthLogout))
		apiMux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleUsersMe))

		if api.viewSvc != nil {
			apiMux.HandleFunc("GET /v1/users", api.requireAuth(api.handleUsersBrowse))
			apiMux.HandleFunc("GET /v1/users/{id}", api.requireAuth(api.handleUsersGet))
			apiMux.HandleFunc("GET /v1/friends", api.requireAuth(api.handleFriendsList))
			apiMux.HandleFunc("GET /v1/friends/pending", api.requireAuth(api.handleFriendsPending))
		}

		if api.relSvc != nil {
			apiMux.HandleFunc("POST /v1/friends/request", api.requireAuth(api.handleFriendsRequest))
			apiMux.HandleFunc("POST /v1/friends/accept", api.requireAuth(api.handleFriendsAccept))
			apiMux.HandleFunc("POST /v1/friends/reject", api.requireAuth(api.handleFriendsReject))
			apiMux.HandleFunc("POST /v1/friends/block", api.requireAuth(api.handleFriendsBlock))
			apiMux.HandleFunc("POST /v1/friends/unblock", api.requireAuth(api.handleFriendsUnblock))
		}

		if api.notificationsSvc != nil {
			apiMux.HandleFunc("PUT /v1/notifications/token", api.requireAuth(api.handleNotificationsTokenUpsert))
			apiMux.HandleFunc("DELETE /v1/notifications/token", api.requireAuth(api.handleNotificationsTokenDelete))
		}
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Handler only resolves the pattern; ServeHTTP also fills in path values.
		_, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		setRoute(r.Context(), pattern)
		apiMux.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		if _, pattern := publicMux.Handler(r); pattern != "" {
			setRoute(r.Context(), pattern)
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	if opts.Metrics != nil {
		h = Metrics(opts.Metrics)(h)
	}
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing    func(context.Context) error
	cachePing func(context.Context) error

	authSvc          *service.AuthService
	relSvc           *service.RelationshipService
	viewSvc          *service.RelationshipViews
	notificationsSvc *service.NotificationService
	sessionCodec     auth.SessionCodec
	cookieOpts       auth.CookieOptions

	loginLimiter *loginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if a.dbPing != nil {
		if err := a.dbPing(ctx); err != nil {
			a.logger.Warn("healthz: db ping failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}
	if a.cachePing != nil {
		if err := a.cachePing(ctx); err != nil {
			a.logger.Warn("healthz: cache ping failed", "err", err)
			_, _ = w.Write([]byte("ok (cache down)"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
