package errors

import (
	"fmt"
	"strings"
)

// FieldError names one invalid input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects every invalid field of a request. Fields are reported
// independently so a caller can show one message per input.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field returns the reason recorded for the named field, if any.
func (e *ValidationError) Field(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Reason, true
		}
	}
	return "", false
}

// StoreError reports a failed record store read or write.
type StoreError struct {
	Operation string
	Err       error
}

// NewStoreError wraps err with the failing operation name.
func NewStoreError(operation string, err error) *StoreError {
	return &StoreError{Operation: operation, Err: err}
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err == nil {
		return e.Operation + " failed"
	}
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NotificationReason classifies why a parent notification did not go out.
type NotificationReason string

const (
	ReasonGatewayFailure   NotificationReason = "gatewayFailure"
	ReasonPermissionDenied NotificationReason = "permissionDenied"
)

// NotificationError is returned when an absence notification could not be sent.
// The attendance write that triggered it is never performed.
type NotificationError struct {
	StudentName string             `json:"student_name"`
	Phone       string             `json:"phone"`
	Reason      NotificationReason `json:"reason"`
	Detail      string             `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *NotificationError) Error() string {
	switch e.Reason {
	case ReasonPermissionDenied:
		return fmt.Sprintf("notification permission not granted; absence of %s not marked", e.StudentName)
	default:
		msg := fmt.Sprintf("failed to send absence notification to %s; absence of %s not marked", e.Phone, e.StudentName)
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		return msg
	}
}
