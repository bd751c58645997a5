package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound               = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict               = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation             = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal               = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrStore                  = New("STORE_ERROR", http.StatusInternalServerError, "record store operation failed")
	ErrNotificationFailed     = New("NOTIFICATION_FAILED", http.StatusBadGateway, "absence notification failed; attendance not marked")
	ErrNotificationPermission = New("NOTIFICATION_PERMISSION_DENIED", http.StatusForbidden, "notification permission not granted; attendance not marked")
	ErrUnsupportedFormat      = New("UNSUPPORTED_FORMAT", http.StatusBadRequest, "unsupported export format")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		out := Wrap(err, ErrValidation.Code, ErrValidation.Status, ErrValidation.Message)
		out.Details = validation.Fields
		return out
	}
	var notification *NotificationError
	if errors.As(err, &notification) {
		base := ErrNotificationFailed
		if notification.Reason == ReasonPermissionDenied {
			base = ErrNotificationPermission
		}
		out := Wrap(err, base.Code, base.Status, base.Message)
		out.Details = notification
		return out
	}
	var store *StoreError
	if errors.As(err, &store) {
		out := Wrap(err, ErrStore.Code, ErrStore.Status, ErrStore.Message)
		out.Details = map[string]string{"operation": store.Operation}
		return out
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
