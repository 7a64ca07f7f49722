package services

import (
	"context"
	"fmt"
	"time"

	"foodshare-notify/interfaces"
	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/sirupsen/logrus"
)

const DefaultGatewayTimeout = 3 * time.Second

// Dispatcher turns an intent into one gateway call per active device token
// and reacts to each classified outcome.
type Dispatcher struct {
	registry interfaces.DeviceRegistry
	gateway  interfaces.PushGateway
	retries  *RetryScheduler
	metrics  *Metrics
	timeout  time.Duration
}

func NewDispatcher(
	registry interfaces.DeviceRegistry,
	gateway interfaces.PushGateway,
	retries *RetryScheduler,
	metrics *Metrics,
	timeout time.Duration,
) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultGatewayTimeout
	}

	d := &Dispatcher{
		registry: registry,
		gateway:  gateway,
		retries:  retries,
		metrics:  metrics,
		timeout:  timeout,
	}
	if retries != nil {
		retries.Bind(d.Redeliver)
	}
	return d
}

// Dispatch delivers intent to every token the recipient has right now. Tokens
// are fetched here, not taken from the eligibility snapshot, so a token pruned
// in between is never used. All tokens are attempted even after one succeeds.
func (d *Dispatcher) Dispatch(ctx context.Context, intent models.NotificationIntent) models.DispatchResult {
	result := models.DispatchResult{IntentID: intent.ID}

	tokens, err := d.registry.GetActiveTokens(ctx, intent.RecipientID)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch device tokens: %w", err)
		logrus.WithFields(logrus.Fields{
			"intent_id":    intent.ID,
			"recipient_id": intent.RecipientID,
		}).WithError(err).Error("Dispatch aborted, device registry unavailable")
		return result
	}

	result.Tokens = len(tokens)
	d.metrics.IntentDispatched(intent)

	for _, token := range tokens {
		attempt := models.DeliveryAttempt{
			ID:        utils.GenerateUUID(),
			Intent:    intent,
			Token:     token,
			State:     models.AttemptPending,
			CreatedAt: time.Now(),
		}

		outcome := d.deliver(ctx, intent, token)
		attempt.LastOutcome = outcome
		d.applyOutcome(ctx, attempt, outcome)

		switch outcome.Status {
		case models.OutcomeSuccess:
			result.Succeeded++
		case models.OutcomePermanent:
			if outcome.InvalidToken {
				result.Pruned++
			} else {
				result.Rejected++
			}
		case models.OutcomeRetryable:
			// The first call counts against the budget.
			attempt.Attempt = 1
			if d.retries != nil && d.retries.Schedule(attempt) {
				result.RetryScheduled++
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"intent_id":       intent.ID,
		"recipient_id":    intent.RecipientID,
		"category":        intent.Category,
		"tokens":          result.Tokens,
		"succeeded":       result.Succeeded,
		"pruned":          result.Pruned,
		"retry_scheduled": result.RetryScheduled,
	}).Debug("Intent dispatched")

	return result
}

// Redeliver is the retry path. The token must still belong to the recipient,
// otherwise the retry ends without a gateway call.
func (d *Dispatcher) Redeliver(ctx context.Context, attempt models.DeliveryAttempt) models.DeliveryOutcome {
	tokens, err := d.registry.GetActiveTokens(ctx, attempt.Intent.RecipientID)
	if err != nil {
		return models.RetryableFailure("registry-unavailable", err)
	}

	token, ok := findToken(tokens, attempt.Token.Token)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"attempt_id": attempt.ID,
			"token":      utils.MaskToken(attempt.Token.Token),
		}).Debug("Retry skipped, token no longer registered")
		return models.RejectedFailure("token-pruned", nil)
	}

	outcome := d.deliver(ctx, attempt.Intent, token)
	d.applyOutcome(ctx, attempt, outcome)
	return outcome
}

func (d *Dispatcher) deliver(ctx context.Context, intent models.NotificationIntent, token models.DeviceToken) models.DeliveryOutcome {
	payload, err := BuildPayload(intent, token.Platform)
	if err != nil {
		return models.RejectedFailure("unsupported-platform", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outcome := d.gateway.Deliver(callCtx, token, payload)
	if outcome.Status != models.OutcomeSuccess && callCtx.Err() == context.DeadlineExceeded {
		return retryableOutcome("timeout", callCtx.Err())
	}
	return outcome
}

// applyOutcome performs the side effects of a success or permanent failure.
// Retryable outcomes are left to the caller.
func (d *Dispatcher) applyOutcome(ctx context.Context, attempt models.DeliveryAttempt, outcome models.DeliveryOutcome) {
	fields := logrus.Fields{
		"intent_id":    attempt.Intent.ID,
		"recipient_id": attempt.Intent.RecipientID,
		"token":        utils.MaskToken(attempt.Token.Token),
		"platform":     attempt.Token.Platform,
		"reason":       outcome.Reason,
	}

	switch outcome.Status {
	case models.OutcomeSuccess:
		if err := d.registry.ConfirmToken(ctx, attempt.Token.Token, time.Now()); err != nil {
			logrus.WithFields(fields).WithError(err).Warn("Failed to confirm device token")
		}

	case models.OutcomePermanent:
		if !outcome.InvalidToken {
			logrus.WithFields(fields).WithError(outcome.Err).Warn("Push gateway rejected notification")
			return
		}
		if err := d.registry.PruneToken(ctx, attempt.Token.Token); err != nil {
			logrus.WithFields(fields).WithError(err).Error("Failed to prune device token")
			return
		}
		d.metrics.TokenPruned()
		logrus.WithFields(fields).Info("Pruned invalid device token")
	}
}

func findToken(tokens []models.DeviceToken, value string) (models.DeviceToken, bool) {
	for _, token := range tokens {
		if token.Token == value {
			return token, true
		}
	}
	return models.DeviceToken{}, false
}
