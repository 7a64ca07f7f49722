package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(code, message string) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewServiceErrorWithStatus creates a service error with specific HTTP status
func NewServiceErrorWithStatus(code, message string, statusCode int) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewServiceErrorWithCause creates a service error that wraps another error
func NewServiceErrorWithCause(code, message string, cause error) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// GetServiceError extracts a ServiceError anywhere in the error chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// HasCode reports whether err carries a ServiceError with the given code
func HasCode(err error, code string) bool {
	serviceErr, ok := GetServiceError(err)
	return ok && serviceErr.Code == code
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewBadRequestError(message string) error {
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewUnauthorizedError(message string) error {
	return ServiceError{
		Code:       ErrCodeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewDatabaseError(operation string, cause error) error {
	return ServiceError{
		Code:       ErrCodeDatabase,
		Message:    fmt.Sprintf("Database operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewResolutionUnavailableError is returned when the geofence index cannot
// answer. The event must be redelivered rather than dropped.
func NewResolutionUnavailableError(cause error) error {
	return ServiceError{
		Code:       ErrCodeResolutionUnavailable,
		Message:    "Recipient resolution unavailable",
		Cause:      cause,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func NewRetryableDeliveryError(reason string, cause error) error {
	return ServiceError{
		Code:       ErrCodeRetryableDelivery,
		Message:    "Push gateway rejected delivery temporarily",
		Details:    reason,
		Cause:      cause,
		StatusCode: http.StatusBadGateway,
	}
}

func NewPermanentDeliveryError(reason string, cause error) error {
	return ServiceError{
		Code:       ErrCodePermanentDelivery,
		Message:    "Push gateway rejected device token",
		Details:    reason,
		Cause:      cause,
		StatusCode: http.StatusBadGateway,
	}
}

func NewConfigurationMissingError(setting string) error {
	return ServiceError{
		Code:       ErrCodeConfigurationMissing,
		Message:    "Required configuration is missing",
		Details:    setting,
		StatusCode: http.StatusInternalServerError,
	}
}

func IsResolutionUnavailable(err error) bool {
	return HasCode(err, ErrCodeResolutionUnavailable)
}

func WrapDatabaseError(err error, operation string) error {
	return NewDatabaseError(operation, err)
}

// Error code constants
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeAuthentication        = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization         = "AUTHORIZATION_ERROR"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeRateLimit             = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal              = "INTERNAL_ERROR"
	ErrCodeDatabase              = "DATABASE_ERROR"
	ErrCodeResolutionUnavailable = "RESOLUTION_UNAVAILABLE"
	ErrCodeRetryableDelivery     = "RETRYABLE_DELIVERY_FAILURE"
	ErrCodePermanentDelivery     = "PERMANENT_DELIVERY_FAILURE"
	ErrCodeConfigurationMissing  = "CONFIGURATION_MISSING"
)

// Common error instances
var (
	ErrServiceUnavailable = NewServiceErrorWithStatus("SERVICE_UNAVAILABLE", "Service is temporarily unavailable", http.StatusServiceUnavailable)
	ErrDeviceNotFound     = NewNotFoundError("Device token")
)
