package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/target/ward-console/internal/errors"
)

// Error is a non-2xx response from the hospital API.
type Error struct {
	StatusCode int
	Status     string // status text, e.g. "Forbidden"
	Message    string // extracted from the body when possible
	Body       []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("api %d %s", e.StatusCode, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool { return statusIs(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is a 403 from the API.
func IsForbidden(err error) bool { return statusIs(err, http.StatusForbidden) }

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsServerError reports whether err is a 5xx from the API.
func IsServerError(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.StatusCode >= 500
}

// StatusCode returns the API status carried by err, or 0.
func StatusCode(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

func statusIs(err error, code int) bool {
	return StatusCode(err) == code
}

// Classify converts a Call error into an AppError so handlers can map it to a response.
// Errors that already are AppErrors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.GetCode(err) != "" {
		return err
	}
	var ae *Error
	if !errors.As(err, &ae) {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "hospital API unreachable")
	}
	msg := ae.Message
	if msg == "" {
		msg = ae.Status
	}
	var code apperrors.ErrorCode
	switch {
	case ae.StatusCode == http.StatusUnauthorized:
		code = apperrors.ErrCodeUnauthorized
	case ae.StatusCode == http.StatusForbidden:
		code = apperrors.ErrCodeForbidden
	case ae.StatusCode == http.StatusNotFound:
		code = apperrors.ErrCodeNotFound
	case ae.StatusCode == http.StatusConflict:
		code = apperrors.ErrCodeConflict
	case ae.StatusCode == http.StatusBadRequest || ae.StatusCode == http.StatusUnprocessableEntity:
		code = apperrors.ErrCodeValidation
	case ae.StatusCode == http.StatusGatewayTimeout || ae.StatusCode == http.StatusRequestTimeout:
		code = apperrors.ErrCodeTimeout
	case ae.StatusCode >= 500:
		code = apperrors.ErrCodeUpstream
	default:
		code = apperrors.ErrCodeInternal
	}
	return apperrors.Wrap(err, code, msg)
}
