// Package apperror provides domain-specific error types for the account
// service. These errors carry an HTTP status code, a user-safe message, and
// optionally a map of per-field reasons (e.g. {"oldPassword": "Forbidden"}).
// The Echo error handler maps them to the response envelope automatically.
//
// NEVER return raw database or infrastructure errors to the client. Always
// wrap them in an apperror type or return a generic internal error.
package apperror

import (
	"fmt"
	"net/http"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error type, a human-readable message
// safe to show to the client, and an optional per-field reason map.
type AppError struct {
	// Code is the HTTP status code (e.g., 404, 401, 500).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "conflict").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Fields maps offending logical fields to machine-checkable reasons,
	// e.g. {"_token": "Invalid"} or {"username": "Required"}. When set, it
	// takes precedence over Message in the response envelope.
	Fields map[string]string `json:"fields,omitempty"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %v", e.Type, e.Fields)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Reason returns what goes into the response envelope's "reason" slot:
// the field map when present, otherwise the plain message string.
func (e *AppError) Reason() any {
	if len(e.Fields) > 0 {
		return e.Fields
	}
	return e.Message
}

// --- Constructors for common error types ---

// NewValidation creates a 400 error for missing or malformed request
// arguments, keyed by field (conventionally with the reason "Required").
func NewValidation(fields map[string]string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "validation_error",
		Message: "missing required arguments",
		Fields:  fields,
	}
}

// NewNotFound creates a 404 Not Found error with per-field reasons.
func NewNotFound(fields map[string]string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Type:    "not_found",
		Message: "not found",
		Fields:  fields,
	}
}

// NewUnauthorized creates a 401 error for credential or token mismatches.
// The message is deliberately identical for unknown-username and
// wrong-password so responses never leak account existence.
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    "auth_error",
		Message: message,
	}
}

// NewInvalidToken creates a 401 error with the {"_token": "Invalid"} reason
// used whenever a session lookup or token comparison fails.
func NewInvalidToken() *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    "auth_error",
		Message: "invalid session token",
		Fields:  map[string]string{"_token": "Invalid"},
	}
}

// NewForbidden creates a 403 error with per-field reasons.
func NewForbidden(fields map[string]string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    "forbidden",
		Message: "forbidden",
		Fields:  fields,
	}
}

// NewConflict creates a 409 error with per-field reasons.
func NewConflict(fields map[string]string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Type:    "conflict",
		Message: "conflict",
		Fields:  fields,
	}
}

// NewStorage creates a 500 error for PrimaryStore/CacheStore failures. The
// real error is stored in Internal for logging but the client only sees a
// generic message. Storage failures are effectively fatal for the request;
// no retry is attempted.
func NewStorage(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "storage_error",
		Message:  "A storage error occurred. Please try again.",
		Internal: err,
	}
}

// NewInternal creates a 500 Internal Server Error for non-storage failures.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field (which is safe to expose).
// For any other error type, returns a generic message to prevent leaking
// internal details like collection names, query structure, or stack traces.
func SafeMessage(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status code from an AppError, or 500 for
// any other error type.
func SafeCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
