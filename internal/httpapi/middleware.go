package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	routeKey
)

func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// requestState is filled in further down the chain (matched pattern, signed-in
// user) so outer middleware can read it after the handler returns.
type requestState struct {
	pattern string
	userID  string
}

func withRequestState(r *http.Request) (*http.Request, *requestState) {
	if st, ok := r.Context().Value(routeKey).(*requestState); ok {
		return r, st
	}
	st := &requestState{}
	return r.WithContext(context.WithValue(r.Context(), routeKey, st)), st
}

func setRoute(ctx context.Context, pattern string) {
	if st, ok := ctx.Value(routeKey).(*requestState); ok {
		st.pattern = pattern
	}
}

func setRequestUser(ctx context.Context, userID string) {
	if st, ok := ctx.Value(routeKey).(*requestState); ok {
		st.userID = userID
	}
}

type requestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

func Metrics(obs requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, st := withRequestState(r)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			pattern := st.pattern
			if pattern == "" {
				pattern = "unmatched"
			}
			obs.ObserveRequest(r.Method, pattern, rec.status, time.Since(start))
		})
	}
}

func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, st := withRequestState(r)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if rid, ok := GetRequestID(r.Context()); ok {
				attrs = append(attrs, "request_id", rid)
			}
			if st.pattern != "" {
				attrs = append(attrs, "route", st.pattern)
			}
			if st.userID != "" {
				attrs = append(attrs, "user_id", st.userID)
			}

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

func Recoverer(logger *slog.Logger, isProd bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if isProd {
					logger.Error("panic", "panic", rec, "path", r.URL.Path)
				} else {
					logger.Error("panic", "panic", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
				}
				WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	if !r.wroteHeader {
		r.status = statusCode
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
