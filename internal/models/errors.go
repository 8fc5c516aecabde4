package models

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents validation errors (4xx)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuthentication represents authentication errors (401)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeAuthorization represents authorization errors (403)
	ErrorTypeAuthorization ErrorType = "authorization"
	// ErrorTypeInsufficientBalance represents a recoverable shortage of credits (402)
	ErrorTypeInsufficientBalance ErrorType = "insufficient_balance"
	// ErrorTypeNotFound represents resource not found errors (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeUnresolvableAccount represents webhook events whose account cannot be located
	ErrorTypeUnresolvableAccount ErrorType = "unresolvable_account"
	// ErrorTypeMalformedEvent represents webhook payloads missing required identity fields
	ErrorTypeMalformedEvent ErrorType = "malformed_event"
	// ErrorTypeProvider represents extraction-provider errors (502)
	ErrorTypeProvider ErrorType = "provider"
	// ErrorTypeStore represents entitlement-store availability errors (503)
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Shortfall  int64     `json:"shortfall,omitzero"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypeMalformedEvent:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeInsufficientBalance:
		return http.StatusPaymentRequired
	case ErrorTypeAuthorization:
		return http.StatusForbidden
	case ErrorTypeNotFound, ErrorTypeUnresolvableAccount:
		return http.StatusNotFound
	case ErrorTypeProvider:
		return http.StatusBadGateway
	case ErrorTypeStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewInsufficientBalanceError creates a recoverable shortage error carrying the
// number of additional credits the caller needs.
func NewInsufficientBalanceError(shortfall int64) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientBalance,
		Message:    fmt.Sprintf("insufficient credits: need %d more", shortfall),
		Code:       "INSUFFICIENT_BALANCE",
		StatusCode: http.StatusPaymentRequired,
		Retryable:  false,
		Shortfall:  shortfall,
	}
}

// NewUnresolvableAccountError marks a webhook event whose account could not be
// located by either user id or subscription id. Never retryable: the provider
// cannot fix an unknown account by redelivering.
func NewUnresolvableAccountError(reference string) *AppError {
	return &AppError{
		Type:      ErrorTypeUnresolvableAccount,
		Message:   fmt.Sprintf("no account matches %s", reference),
		Code:      "UNRESOLVABLE_ACCOUNT",
		Retryable: false,
	}
}

// NewMalformedEventError marks a webhook payload the normalizer could not
// extract a user identity from.
func NewMalformedEventError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeMalformedEvent,
		Message:   message,
		Code:      "MALFORMED_EVENT",
		Retryable: false,
		Cause:     cause,
	}
}

// NewProviderError creates an extraction-provider error
func NewProviderError(provider, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Message:    fmt.Sprintf("provider %s error: %s", provider, message),
		Code:       fmt.Sprintf("PROVIDER_%s_ERROR", provider),
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewStoreError creates an entitlement-store availability error. Retryable so
// webhook providers redeliver and consumption requests fail closed.
func NewStoreError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeStore,
		Message:    message,
		Code:       "STORE_UNAVAILABLE",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		// Return a copy without internal details
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
			Shortfall:  appErr.Shortfall,
		}
	}

	return NewInternalError("an unexpected error occurred", err)
}
