package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"FriendsWebServer/internal/auth"
	"FriendsWebServer/internal/domain"
	"FriendsWebServer/internal/service"
)

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Gender      string `json:"gender"`
}

// sessionResponse carries the signed token as well as the cookie so mobile
// clients can send it back as a bearer token.
type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, sessID, err := a.authSvc.Register(r.Context(), service.RegisterInput{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Gender:      domain.Gender(strings.ToLower(strings.TrimSpace(req.Gender))),
	}, clientInfo(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	a.startSession(w, http.StatusCreated, u, sessID)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	fields := map[string]string{}
	if req.Login == "" {
		fields["login"] = "required"
	}
	if req.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		WriteDomainError(w, domain.NewValidationError(fields))
		return
	}

	if !a.allowLogin(r, req.Login) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	u, sessID, err := a.authSvc.Login(r.Context(), req.Login, req.Password, clientInfo(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	a.startSession(w, http.StatusOK, u, sessID)
}

type idTokenRequest struct {
	IDToken string `json:"id_token"`
}

func (a *api) handleAuthLoginGoogle(w http.ResponseWriter, r *http.Request) {
	a.handleExternalLogin(w, r, a.authSvc.LoginWithGoogle)
}

func (a *api) handleAuthLoginApple(w http.ResponseWriter, r *http.Request) {
	a.handleExternalLogin(w, r, a.authSvc.LoginWithApple)
}

type externalLoginFunc func(ctx context.Context, idToken string, client service.ClientInfo) (domain.User, string, error)

func (a *api) handleExternalLogin(w http.ResponseWriter, r *http.Request, login externalLoginFunc) {
	var req idTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.IDToken == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id_token": "required"}))
		return
	}

	if !a.allowLogin(r, "") {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	u, sessID, err := login(r.Context(), req.IDToken, clientInfo(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	a.startSession(w, http.StatusOK, u, sessID)
}

func (a *api) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	sessID, ok := CurrentSessionID(r.Context())
	if !ok || sessID == "" {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.authSvc.Logout(r.Context(), sessID); err != nil && a.logger != nil {
		a.logger.WarnContext(r.Context(), "logout: revoke session failed", "err", err)
	}
	auth.ClearSessionCookie(w, a.cookieOpts)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) startSession(w http.ResponseWriter, status int, u domain.User, sessID string) {
	token := a.sessionCodec.Sign(sessID)
	auth.SetSessionCookie(w, token, a.cookieOpts)
	WriteJSON(w, status, sessionResponse{User: newUserResponse(u), Token: token})
}

// allowLogin consumes one attempt for the client ip and, when given, for the
// login name.
func (a *api) allowLogin(r *http.Request, login string) bool {
	if a.loginLimiter == nil {
		return true
	}
	now := time.Now()
	if !a.loginLimiter.Allow("ip:"+clientIP(r), now) {
		return false
	}
	if login != "" && !a.loginLimiter.Allow("login:"+strings.ToLower(login), now) {
		return false
	}
	return true
}
