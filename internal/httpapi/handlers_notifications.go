package httpapi

import (
	"net/http"
	"strings"

	"FriendsWebServer/internal/domain"
)

type notificationTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type notificationTokenResponse struct {
	Token     string              `json:"token"`
	Platform  domain.PushPlatform `json:"platform"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

func (a *api) handleNotificationsTokenUpsert(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req notificationTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	out, err := a.notificationsSvc.RegisterToken(r.Context(), u.ID, req.Token, req.Platform)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, notificationTokenResponse{
		Token:     out.Token,
		Platform:  out.Platform,
		CreatedAt: formatMillis(out.CreatedAt),
		UpdatedAt: formatMillis(out.UpdatedAt),
	})
}

// handleNotificationsTokenDelete takes the token from the query string, or
// from a JSON body for clients that cannot put it in the URL.
func (a *api) handleNotificationsTokenDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" && r.ContentLength != 0 {
		var req notificationTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
			return
		}
		token = req.Token
	}

	if err := a.notificationsSvc.DeleteToken(r.Context(), u.ID, token); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
