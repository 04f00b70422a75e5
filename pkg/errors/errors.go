package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrChatNotFound     = errors.New("chat not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotMember        = errors.New("not a member of this chat")
	ErrValidation       = errors.New("invalid request")
	ErrConflict         = errors.New("already satisfied")
	ErrStoreUnavailable = errors.New("store temporarily unavailable")
)

// Коды причин для PermissionDenied
const (
	ReasonNotFriends    = "NotFriends"
	ReasonBlocked       = "Blocked"
	ReasonNotAdmin      = "NotAdmin"
	ReasonNotOwner      = "NotOwner"
	ReasonNotAuthor     = "NotAuthor"
	ReasonBanned        = "Banned"
	ReasonTooOldToEdit  = "TooOldToEdit"
	ReasonTargetIsOwner = "TargetIsOwner"
	ReasonTargetIsAdmin = "TargetIsAdmin"
	ReasonNotRecipient  = "NotRecipient"
)

type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return "permission denied: " + e.Reason
}

func Denied(reason string) error {
	return &PermissionDeniedError{Reason: reason}
}

// MissingPermission обозначает отсутствие конкретного права в наборе администратора
func MissingPermission(name string) error {
	return &PermissionDeniedError{Reason: "MissingPermission:" + name}
}

func IsPermissionDenied(err error) bool {
	var pd *PermissionDeniedError
	return errors.As(err, &pd)
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func HTTPStatusFromError(err error) int {
	var pd *PermissionDeniedError
	if errors.As(err, &pd) {
		return http.StatusForbidden
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrChatNotFound),
		errors.Is(err, ErrMessageNotFound),
		errors.Is(err, ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ReasonCode возвращает стабильный код для тела ответа
func ReasonCode(err error) string {
	var pd *PermissionDeniedError
	if errors.As(err, &pd) {
		return pd.Reason
	}

	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrChatNotFound),
		errors.Is(err, ErrMessageNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrNotAuthenticated):
		return "NotAuthenticated"
	case errors.Is(err, ErrNotMember):
		return "NotMember"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "TransientStoreError"
	default:
		return "InternalError"
	}
}
