// Package errors provides the API error taxonomy shared by services and handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is an error that knows how it is rendered to a client.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Is matches on Code so copies made by WithMessage still compare equal
// to their sentinel under errors.Is.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of the error with additional details.
func (e *APIError) WithDetails(details any) *APIError {
	return &APIError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Details:    details,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *APIError) WithMessage(message string) *APIError {
	return &APIError{
		Code:       e.Code,
		Message:    message,
		StatusCode: e.StatusCode,
		Details:    e.Details,
	}
}

var (
	// ErrBadRequest is returned when the request body cannot be decoded.
	ErrBadRequest = &APIError{
		Code:       "bad_request",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	// ErrValidation is returned when a required field is missing.
	ErrValidation = &APIError{
		Code:       "validation_error",
		Message:    "Missing required fields",
		StatusCode: http.StatusBadRequest,
	}

	// ErrInvalidCredentials is returned when email and password do not match a user.
	ErrInvalidCredentials = &APIError{
		Code:       "invalid_credentials",
		Message:    "Invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrUnauthorized is returned when a session token is missing or unknown.
	ErrUnauthorized = &APIError{
		Code:       "unauthorized",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrSessionExpired is returned when a stored session token is past its expiry.
	ErrSessionExpired = &APIError{
		Code:       "session_expired",
		Message:    "Session expired",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrInvalidExternalToken is returned when Google rejects or cannot verify an id token.
	ErrInvalidExternalToken = &APIError{
		Code:       "invalid_external_token",
		Message:    "Invalid Google token",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrConflict is returned when the email is already registered.
	// Clients of the legacy service expect 400 here, not 409.
	ErrConflict = &APIError{
		Code:       "conflict",
		Message:    "Email already registered",
		StatusCode: http.StatusBadRequest,
	}

	// ErrDelivery is returned when the verification email could not be sent.
	ErrDelivery = &APIError{
		Code:       "delivery_error",
		Message:    "Failed to send verification code",
		StatusCode: http.StatusInternalServerError,
	}

	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = &APIError{
		Code:       "not_found",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	// ErrInternal covers store, configuration and any unclassified failure.
	ErrInternal = &APIError{
		Code:       "internal_error",
		Message:    "An internal error occurred",
		StatusCode: http.StatusInternalServerError,
	}

	// ErrServiceUnavailable is returned when a dependency fails its readiness check.
	ErrServiceUnavailable = &APIError{
		Code:       "service_unavailable",
		Message:    "Service temporarily unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}
)

// ErrConfig marks a missing or invalid server setting. It is not an APIError,
// so it always renders as ErrInternal.
var ErrConfig = errors.New("configuration error")

// NewValidationError creates a validation error for a specific field.
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:       ErrValidation.Code,
		Message:    fmt.Sprintf("Validation failed: %s", message),
		StatusCode: http.StatusBadRequest,
		Details: map[string]string{
			"field": field,
			"error": message,
		},
	}
}

// NewValidationErrors creates a validation error with multiple field errors.
func NewValidationErrors(fields map[string]string) *APIError {
	return &APIError{
		Code:       ErrValidation.Code,
		Message:    ErrValidation.Message,
		StatusCode: http.StatusBadRequest,
		Details:    fields,
	}
}

// AsAPIError converts an error to an APIError if possible.
// Returns ErrInternal if the error chain holds no APIError.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal
}
