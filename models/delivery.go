package models

import (
	"time"
)

type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeRetryable OutcomeStatus = "retryable"
	OutcomePermanent OutcomeStatus = "permanent"
)

// DeliveryOutcome is the classified push gateway response for one token.
// InvalidToken is only set on permanent outcomes that condemn the token
// itself; other permanent rejections are dropped without pruning.
type DeliveryOutcome struct {
	Status       OutcomeStatus `json:"status"`
	MessageID    string        `json:"messageId,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	InvalidToken bool          `json:"invalidToken,omitempty"`
	Err          error         `json:"-"`
}

func Succeeded(messageID string) DeliveryOutcome {
	return DeliveryOutcome{Status: OutcomeSuccess, MessageID: messageID}
}

func RetryableFailure(reason string, err error) DeliveryOutcome {
	return DeliveryOutcome{Status: OutcomeRetryable, Reason: reason, Err: err}
}

func InvalidTokenFailure(reason string, err error) DeliveryOutcome {
	return DeliveryOutcome{Status: OutcomePermanent, Reason: reason, InvalidToken: true, Err: err}
}

func RejectedFailure(reason string, err error) DeliveryOutcome {
	return DeliveryOutcome{Status: OutcomePermanent, Reason: reason, Err: err}
}

type AttemptState string

const (
	AttemptPending          AttemptState = "pending"
	AttemptSuccess          AttemptState = "success"
	AttemptPermanentFailure AttemptState = "permanent_failure"
	AttemptRetryScheduled   AttemptState = "retry_scheduled"
	AttemptDropped          AttemptState = "dropped"
	AttemptCancelled        AttemptState = "cancelled"
)

// DeliveryAttempt tracks one (intent, token) delivery while retries are pending.
type DeliveryAttempt struct {
	ID          string             `json:"id"`
	Intent      NotificationIntent `json:"intent"`
	Token       DeviceToken        `json:"token"`
	Attempt     int                `json:"attempt"`
	State       AttemptState       `json:"state"`
	LastOutcome DeliveryOutcome    `json:"lastOutcome"`
	NextRetryAt time.Time          `json:"nextRetryAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// DispatchResult summarizes the per-token outcomes of one intent.
type DispatchResult struct {
	IntentID       string `json:"intentId"`
	Tokens         int    `json:"tokens"`
	Succeeded      int    `json:"succeeded"`
	Pruned         int    `json:"pruned"`
	Rejected       int    `json:"rejected"`
	RetryScheduled int    `json:"retryScheduled"`
	Err            error  `json:"-"`
}

// Delivered is true as soon as one token accepted the notification.
func (r DispatchResult) Delivered() bool {
	return r.Succeeded > 0
}
