package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not_found")
	ErrConflict              = errors.New("conflict")
	ErrInvariant             = errors.New("invariant_violation")
	ErrUsernameTaken         = errors.New("username_taken")
	ErrEmailTaken            = errors.New("email_taken")
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrUserDisabled          = errors.New("user_disabled")
	ErrExternalAccountExists = errors.New("external_account_exists")
	ErrValidation            = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// Conflict reasons reported by relationship transitions.
const (
	ReasonAlreadyFriends = "already_friends"
	ReasonAlreadySent    = "already_sent"
	ReasonBlocked        = "blocked"
	ReasonNotPending     = "not_pending"
	ReasonNotBlocker     = "not_blocker"
)

// ConflictError reports a transition that the current relationship status does not allow.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

func NewConflictError(reason string) error {
	return &ConflictError{Reason: reason}
}

// Authorization reasons.
const (
	ReasonOwnRequest  = "own_request"
	ReasonNotReceiver = "not_receiver"
)

// AuthorizationError reports an actor that lacks the role a transition requires.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "forbidden: " + e.Reason }

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// InvariantError means a stored record is in a state no transition can produce.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.Detail }

func (e *InvariantError) Unwrap() error { return ErrInvariant }

func NewInvariantError(format string, args ...any) error {
	return &InvariantError{Detail: fmt.Sprintf(format, args...)}
}
