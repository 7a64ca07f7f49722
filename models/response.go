package models

import "time"

// Standard API Response wrapper
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// Health Check Response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// Statistics Response
type StatsResponse struct {
	Dispatch DispatchStats `json:"dispatch"`
	Retries  RetryStats    `json:"retries"`
	Grouping GroupingStats `json:"grouping"`
	Cleanup  CleanupStats  `json:"cleanup"`
	Consumer ConsumerStats `json:"consumer"`
}

type DispatchStats struct {
	Queued      int64     `json:"queued"`
	Processed   int64     `json:"processed"`
	Delivered   int64     `json:"delivered"`
	Failed      int64     `json:"failed"`
	QueueLength int       `json:"queueLength"`
	LastRunTime time.Time `json:"lastRunTime"`
}

type RetryStats struct {
	Scheduled int64 `json:"scheduled"`
	Retried   int64 `json:"retried"`
	Succeeded int64 `json:"succeeded"`
	Dropped   int64 `json:"dropped"`
	Cancelled int64 `json:"cancelled"`
	Pending   int   `json:"pending"`
}

type GroupingStats struct {
	Buffered       int64 `json:"buffered"`
	Bypassed       int64 `json:"bypassed"`
	Flushed        int64 `json:"flushed"`
	Collapsed      int64 `json:"collapsed"`
	Deduplicated   int64 `json:"deduplicated"`
	PendingBuckets int   `json:"pendingBuckets"`
}

type CleanupStats struct {
	Runs        int64     `json:"runs"`
	Pruned      int64     `json:"pruned"`
	LastRunTime time.Time `json:"lastRunTime"`
}

type ConsumerStats struct {
	Consumed    int64     `json:"consumed"`
	Committed   int64     `json:"committed"`
	Redelivered int64     `json:"redelivered"`
	Rejected    int64     `json:"rejected"`
	LastMessage time.Time `json:"lastMessage"`
}

// Error Response Codes
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization  = "AUTHORIZATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeExternal       = "EXTERNAL_SERVICE_ERROR"

	ErrCodeResolutionUnavailable = "RESOLUTION_UNAVAILABLE"
	ErrCodeRetryableDelivery     = "RETRYABLE_DELIVERY_FAILURE"
	ErrCodePermanentDelivery     = "PERMANENT_DELIVERY_FAILURE"
	ErrCodeConfigurationMissing  = "CONFIGURATION_MISSING"
)
