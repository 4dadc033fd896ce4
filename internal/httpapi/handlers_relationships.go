package httpapi

import (
	"net/http"
	"strings"

	"FriendsWebServer/internal/domain"
)

type targetUserRequest struct {
	UserID string `json:"user_id"`
}

type relationshipIDRequest struct {
	RelationshipID string `json:"relationship_id"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

func (a *api) handleFriendsList(w http.ResponseWriter, r *http.Request) {
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

	friends, err := a.viewSvc.ListFriends(r.Context(), u.ID, skip, limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, listResponse[domain.Profile]{Data: friends})
}

func (a *api) handleFriendsPending(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	pending, err := a.viewSvc.ListPendingReceived(r.Context(), u.ID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, listResponse[domain.PendingRequest]{Data: pending})
}

func (a *api) handleFriendsRequest(w http.ResponseWriter, r *http.Request) {
	u, target, ok := a.decodeTargetUser(w, r)
	if !ok {
		return
	}

	rel, created, err := a.relSvc.SendFriendRequest(r.Context(), u.ID, target)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeRelationship(w, created, rel)
}

func (a *api) handleFriendsAccept(w http.ResponseWriter, r *http.Request) {
	u, relID, ok := a.decodeRelationshipID(w, r)
	if !ok {
		return
	}

	rel, err := a.relSvc.AcceptFriendRequest(r.Context(), u.ID, relID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeRelationship(w, false, rel)
}

func (a *api) handleFriendsReject(w http.ResponseWriter, r *http.Request) {
	u, relID, ok := a.decodeRelationshipID(w, r)
	if !ok {
		return
	}

	rel, err := a.relSvc.RejectFriendRequest(r.Context(), u.ID, relID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeRelationship(w, false, rel)
}

func (a *api) handleFriendsBlock(w http.ResponseWriter, r *http.Request) {
	u, target, ok := a.decodeTargetUser(w, r)
	if !ok {
		return
	}

	rel, created, err := a.relSvc.BlockUser(r.Context(), u.ID, target)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeRelationship(w, created, rel)
}

func (a *api) handleFriendsUnblock(w http.ResponseWriter, r *http.Request) {
	u, target, ok := a.decodeTargetUser(w, r)
	if !ok {
		return
	}

	rel, err := a.relSvc.UnblockUser(r.Context(), u.ID, target)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeRelationship(w, false, rel)
}

func (a *api) decodeTargetUser(w http.ResponseWriter, r *http.Request) (domain.User, string, bool) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return domain.User{}, "", false
	}

	var req targetUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return domain.User{}, "", false
	}
	return u, strings.TrimSpace(req.UserID), true
}

func (a *api) decodeRelationshipID(w http.ResponseWriter, r *http.Request) (domain.User, string, bool) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return domain.User{}, "", false
	}

	var req relationshipIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return domain.User{}, "", false
	}
	return u, strings.TrimSpace(req.RelationshipID), true
}

func writeRelationship(w http.ResponseWriter, created bool, rel domain.Relationship) {
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	if rel.BlockedBy == nil {
		rel.BlockedBy = []string{}
	}
	WriteJSON(w, status, rel)
}

// writeServiceError logs failures that map to 500 before writing the
// response; client errors are only reflected in the request log.
func (a *api) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if isServerError(err) && a.logger != nil {
		a.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	WriteDomainError(w, err)
}
