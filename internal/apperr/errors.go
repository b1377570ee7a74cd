// Package apperr defines the error taxonomy shared by the collaboration services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindValidation
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a domain error. Sentinels are compared by identity with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newSentinel(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrGroupNotFound        = newSentinel(KindNotFound, "group_not_found", "group not found")
	ErrChatNotFound         = newSentinel(KindNotFound, "chat_not_found", "chat not found")
	ErrMessageNotFound      = newSentinel(KindNotFound, "message_not_found", "message not found")
	ErrUserNotFound         = newSentinel(KindNotFound, "user_not_found", "user not found")
	ErrNotificationNotFound = newSentinel(KindNotFound, "notification_not_found", "notification not found")

	ErrForbidden = newSentinel(KindForbidden, "forbidden", "not allowed")

	ErrDefaultGroupImmutable = newSentinel(KindInvalidState, "default_group_immutable", "default groups cannot be left or deleted")
	ErrCannotRemoveOwner     = newSentinel(KindInvalidState, "cannot_remove_owner", "the group owner cannot be removed")
	ErrSelfChat              = newSentinel(KindInvalidState, "self_chat", "cannot start a chat with yourself")
	ErrNotAMember            = newSentinel(KindInvalidState, "not_a_member", "user is not a member of the group")
	ErrMessageDeleted        = newSentinel(KindInvalidState, "message_deleted", "message has been deleted")

	ErrEmptyMessage = newSentinel(KindValidation, "empty_message", "message needs a body or an attachment")
	ErrInvalidInput = newSentinel(KindValidation, "invalid_input", "invalid input")
)

// Invalid returns a validation error carrying a specific message.
func Invalid(msg string) error {
	return &Error{Kind: KindValidation, Code: ErrInvalidInput.Code, Message: msg, Err: ErrInvalidInput}
}

// Unavailable wraps an infrastructure failure. Domain errors pass through untouched.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var domain *Error
	if errors.As(err, &domain) {
		return err
	}
	return &Error{Kind: KindUnavailable, Code: "unavailable", Message: "storage unavailable", Err: err}
}

// KindOf reports the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var domain *Error
	if errors.As(err, &domain) {
		return domain.Kind
	}
	return KindUnknown
}

// CodeOf reports the machine-readable code of err.
func CodeOf(err error) string {
	var domain *Error
	if errors.As(err, &domain) {
		return domain.Code
	}
	return "internal"
}
