package models

import "time"

// ErrorResponse is written by the error handler when a request panics.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func NewErrorResponse(errorType, message, code, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     errorType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   make(map[string]interface{}),
		Timestamp: time.Now().UTC(),
	}
}

func (e *ErrorResponse) WithDetails(key string, value interface{}) *ErrorResponse {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

const (
	ErrorTypeInternal       = "INTERNAL_SERVER_ERROR"
	CodeInternalServerError = "INTERNAL_SERVER_ERROR"
)
