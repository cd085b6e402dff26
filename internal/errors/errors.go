// Package errors defines the console's coded application errors.
//
// Adapters translate provider and API failures into an *AppError so the HTTP
// layer can pick a status and a message without knowing where they came from.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorizes an AppError.
type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "not_found"
	ErrCodeConflict           ErrorCode = "conflict"
	ErrCodeValidation         ErrorCode = "validation"
	ErrCodeInternal           ErrorCode = "internal"
	ErrCodeTimeout            ErrorCode = "timeout"
	ErrCodeCanceled           ErrorCode = "canceled"
	ErrCodeUnauthorized       ErrorCode = "unauthorized"        // API rejected the bearer token (401)
	ErrCodeForbidden          ErrorCode = "forbidden"           // caller lacks the privilege (403)
	ErrCodeUpstream           ErrorCode = "upstream"            // hospital API failed or answered garbage
	ErrCodeUnavailable        ErrorCode = "unavailable"         // a collaborator could not be reached
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials" // identity provider refused a sign-in
)

// AppError carries a code, a visitor-safe message and an optional cause.
// Field names the offending form field for validation errors.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New creates an AppError without a cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NotFound creates a not_found error.
func NotFound(message string) *AppError { return New(ErrCodeNotFound, message) }

// Conflict creates a conflict error.
func Conflict(message string) *AppError { return New(ErrCodeConflict, message) }

// Validation creates a validation error.
func Validation(message string) *AppError { return New(ErrCodeValidation, message) }

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// ValidationField creates a validation error attached to a form field.
func ValidationField(field, message string) *AppError {
	e := New(ErrCodeValidation, message)
	e.Field = field
	return e
}

// Wrap attaches code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool           { return Is(err, ErrCodeNotFound) }
func IsConflict(err error) bool           { return Is(err, ErrCodeConflict) }
func IsValidation(err error) bool         { return Is(err, ErrCodeValidation) }
func IsTimeout(err error) bool            { return Is(err, ErrCodeTimeout) }
func IsCanceled(err error) bool           { return Is(err, ErrCodeCanceled) }
func IsUnauthorized(err error) bool       { return Is(err, ErrCodeUnauthorized) }
func IsForbidden(err error) bool          { return Is(err, ErrCodeForbidden) }
func IsInvalidCredentials(err error) bool { return Is(err, ErrCodeInvalidCredentials) }

// GetCode returns the code of the first AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the field of the first AppError in err's chain, or "".
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

var statusByCode = map[ErrorCode]int{
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeInvalidCredentials: http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeUpstream:           http.StatusBadGateway,
	ErrCodeUnavailable:        http.StatusServiceUnavailable,
}

// HTTPStatus maps an error to the status the console answers with.
// Errors without a known code map to 500.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[GetCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
