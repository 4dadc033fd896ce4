package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"FriendsWebServer/internal/domain"
)

type userResponse struct {
	ID          string        `json:"id"`
	Email       string        `json:"email,omitempty"`
	Username    string        `json:"username"`
	DisplayName string        `json:"display_name"`
	Gender      domain.Gender `json:"gender,omitempty"`
	AvatarPath  string        `json:"avatar_path,omitempty"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
	LastLoginAt *string       `json:"last_login_at,omitempty"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Gender:      u.Gender,
		AvatarPath:  u.AvatarPath,
		CreatedAt:   formatMillis(u.CreatedAt),
		UpdatedAt:   formatMillis(u.UpdatedAt),
		LastLoginAt: formatMillisPtr(u.LastLoginAt),
	}
}

func (a *api) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	etag := userETag(u)
	if match := strings.TrimSpace(r.Header.Get("If-None-Match")); match != "" && match == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	WriteJSON(w, http.StatusOK, newUserResponse(u))
}

// handleUsersBrowse pages through the directory with each entry labelled by
// its relationship to the caller.
func (a *api) handleUsersBrowse(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	skip, limit, err := pageParams(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) > 64 {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"q": "must be at most 64 characters"}))
		return
	}

	users, err := a.viewSvc.BrowseUsers(r.Context(), u.ID, q, skip, limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, listResponse[domain.UserWithLabel]{Data: users})
}

func (a *api) handleUsersGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := CurrentUser(r.Context()); !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "required"}))
		return
	}

	p, err := a.viewSvc.GetProfile(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func userETag(u domain.User) string {
	return fmt.Sprintf("W/\"user:%s:%d\"", u.ID, u.UpdatedAt.UnixNano())
}

func formatMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatMillisPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	out := formatMillis(*t)
	return &out
}
