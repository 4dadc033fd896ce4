package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"FriendsWebServer/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps service errors onto HTTP statuses. Conflict and
// authorization reasons are passed through so clients can branch on them.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, body := describeError(err)
	WriteJSON(w, status, errorEnvelope{Error: body})
}

func isServerError(err error) bool {
	status, _ := describeError(err)
	return status >= http.StatusInternalServerError
}

func describeError(err error) (int, apiError) {
	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
		ae *domain.AuthorizationError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, apiError{Code: "validation_error", Message: "invalid request", Fields: ve.Fields}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, apiError{Code: "validation_error", Message: "invalid request"}
	case errors.As(err, &ce):
		return http.StatusConflict, apiError{Code: "conflict", Message: "relationship state does not allow this", Reason: ce.Reason}
	case errors.As(err, &ae):
		return http.StatusForbidden, apiError{Code: "forbidden", Message: "not allowed to respond to this request", Reason: ae.Reason}
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, apiError{Code: "username_taken", Message: "username already taken"}
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, apiError{Code: "email_taken", Message: "email already taken"}
	case errors.Is(err, domain.ErrExternalAccountExists):
		return http.StatusConflict, apiError{Code: "external_account_exists", Message: "account already linked to another sign-in"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, apiError{Code: "invalid_credentials", Message: "invalid login or password"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, apiError{Code: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, domain.ErrUserDisabled):
		return http.StatusForbidden, apiError{Code: "user_disabled", Message: "user is disabled"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, apiError{Code: "forbidden", Message: "forbidden"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, apiError{Code: "not_found", Message: "not found"}
	default:
		return http.StatusInternalServerError, apiError{Code: "internal_error", Message: "internal server error"}
	}
}
