package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure for client-facing messaging. Kinds are
// stable identifiers; clients switch on them rather than on message text.
type Kind string

const (
	KindDuplicateUser       Kind = "DuplicateUser"
	KindSelfDeleteForbidden Kind = "SelfDeleteForbidden"
	KindUnauthenticated     Kind = "Unauthenticated"
	KindMissingFields       Kind = "MissingFields"
	KindUserNotFound        Kind = "UserNotFound"
	KindStorageUnavailable  Kind = "StorageUnavailable"
)

// Error is a domain error carrying a kind and optional structured data.
type Error struct {
	Kind    Kind
	Message string
	Data    map[string]any
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%s: %s %v", e.Kind, e.Message, e.Data)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so sentinel values below work with
// errors.Is even when the concrete error carries data.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrSelfDeleteForbidden = &Error{Kind: KindSelfDeleteForbidden, Message: "users cannot delete their own account"}
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound, Message: "no matching user found"}
	ErrStorageUnavailable  = &Error{Kind: KindStorageUnavailable, Message: "storage temporarily unavailable"}
	ErrDuplicateUser       = &Error{Kind: KindDuplicateUser, Message: "a user with this email already exists"}
	ErrMissingFields       = &Error{Kind: KindMissingFields, Message: "required fields are missing"}
)

// NewDuplicateUser builds a DuplicateUser error carrying the attempted email.
func NewDuplicateUser(email string) *Error {
	return &Error{
		Kind:    KindDuplicateUser,
		Message: "a user with this email already exists",
		Data:    map[string]any{"email": email},
	}
}

// NewMissingFields builds a MissingFields error naming the absent fields.
func NewMissingFields(fields ...string) *Error {
	return &Error{
		Kind:    KindMissingFields,
		Message: fmt.Sprintf("required fields are missing: %v", fields),
	}
}

// StatusForKind maps a domain error kind to its HTTP status.
func StatusForKind(k Kind) int {
	switch k {
	case KindDuplicateUser:
		return http.StatusConflict
	case KindSelfDeleteForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindMissingFields:
		return http.StatusBadRequest
	case KindUserNotFound:
		return http.StatusNotFound
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Response is the generic success/message envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
