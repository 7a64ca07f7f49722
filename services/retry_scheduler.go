package services

import (
	"context"
	"sync"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/sirupsen/logrus"
)

// DefaultMaxDeliveryAttempts counts every gateway call for one token, the
// first dispatch included.
const DefaultMaxDeliveryAttempts = 4

// DefaultRetryBackoff is the delay after each failed attempt. When the budget
// outlasts the list the last delay repeats.
var DefaultRetryBackoff = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
}

// RedeliverFunc performs one retry and its side effects, returning the outcome.
type RedeliverFunc func(ctx context.Context, attempt models.DeliveryAttempt) models.DeliveryOutcome

type pendingRetry struct {
	attempt models.DeliveryAttempt
	timer   *time.Timer
}

// RetryScheduler keeps retryable deliveries as cancellable timers. Nothing
// sleeps while a retry is pending. Pending retries are lost on restart.
type RetryScheduler struct {
	backoff     []time.Duration
	maxAttempts int
	redeliver RedeliverFunc
	metrics   *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pending  map[string]*pendingRetry
	byEntity map[string]map[string]struct{}
	stopped  bool

	stats      models.RetryStats
	statsMutex sync.RWMutex
}

func NewRetryScheduler(backoff []time.Duration, maxAttempts int, metrics *Metrics) *RetryScheduler {
	if len(backoff) == 0 {
		backoff = DefaultRetryBackoff
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxDeliveryAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RetryScheduler{
		backoff:     backoff,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[string]*pendingRetry),
		byEntity:    make(map[string]map[string]struct{}),
	}
}

// Bind sets the function used when a retry fires. The dispatcher binds
// itself on construction.
func (rs *RetryScheduler) Bind(redeliver RedeliverFunc) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.redeliver = redeliver
}

// MaxAttempts is the number of gateway calls made for one token before the
// delivery is dropped.
func (rs *RetryScheduler) MaxAttempts() int {
	return rs.maxAttempts
}

// Delay returns the wait after failed attempt n (1-based).
func (rs *RetryScheduler) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if n > len(rs.backoff) {
		n = len(rs.backoff)
	}
	return rs.backoff[n-1]
}

// Schedule arms the next try after attempt.Attempt gateway calls have failed.
// Once the budget is spent the delivery is dropped and Schedule returns false.
func (rs *RetryScheduler) Schedule(attempt models.DeliveryAttempt) bool {
	if attempt.Attempt < 1 {
		attempt.Attempt = 1
	}
	if attempt.Attempt >= rs.maxAttempts {
		rs.drop(attempt)
		return false
	}
	if attempt.ID == "" {
		attempt.ID = utils.GenerateUUID()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	delay := rs.Delay(attempt.Attempt)
	attempt.State = models.AttemptRetryScheduled
	attempt.NextRetryAt = time.Now().Add(delay)

	rs.mu.Lock()
	if rs.stopped {
		rs.mu.Unlock()
		return false
	}

	id := attempt.ID
	entry := &pendingRetry{attempt: attempt}
	rs.pending[id] = entry
	if ref := attempt.Intent.EntityRef; ref != "" {
		if rs.byEntity[ref] == nil {
			rs.byEntity[ref] = make(map[string]struct{})
		}
		rs.byEntity[ref][id] = struct{}{}
	}
	entry.timer = time.AfterFunc(delay, func() { rs.fire(id) })
	rs.mu.Unlock()

	rs.statsMutex.Lock()
	rs.stats.Scheduled++
	rs.statsMutex.Unlock()
	rs.metrics.RetryScheduled()

	logrus.WithFields(logrus.Fields{
		"attempt_id": id,
		"attempt":    attempt.Attempt,
		"delay":      delay,
		"token":      utils.MaskToken(attempt.Token.Token),
		"reason":     attempt.LastOutcome.Reason,
	}).Debug("Delivery retry scheduled")

	return true
}

func (rs *RetryScheduler) fire(id string) {
	rs.mu.Lock()
	entry, ok := rs.pending[id]
	if !ok || rs.stopped {
		rs.mu.Unlock()
		return
	}
	rs.removeLocked(id, entry.attempt.Intent.EntityRef)
	redeliver := rs.redeliver
	rs.wg.Add(1)
	rs.mu.Unlock()

	defer rs.wg.Done()

	rs.statsMutex.Lock()
	rs.stats.Retried++
	rs.statsMutex.Unlock()

	if redeliver == nil {
		logrus.WithField("attempt_id", id).Error("Retry fired with no redeliver function bound")
		return
	}

	attempt := entry.attempt
	attempt.State = models.AttemptPending
	outcome := redeliver(rs.ctx, attempt)
	attempt.LastOutcome = outcome

	switch outcome.Status {
	case models.OutcomeSuccess:
		rs.statsMutex.Lock()
		rs.stats.Succeeded++
		rs.statsMutex.Unlock()
	case models.OutcomeRetryable:
		attempt.Attempt++
		rs.Schedule(attempt)
	}
}

func (rs *RetryScheduler) drop(attempt models.DeliveryAttempt) {
	attempt.State = models.AttemptDropped

	rs.statsMutex.Lock()
	rs.stats.Dropped++
	rs.statsMutex.Unlock()
	rs.metrics.RetryDropped()

	logrus.WithFields(logrus.Fields{
		"intent_id":    attempt.Intent.ID,
		"recipient_id": attempt.Intent.RecipientID,
		"category":     attempt.Intent.Category,
		"token":        utils.MaskToken(attempt.Token.Token),
		"attempts":     attempt.Attempt,
		"reason":       attempt.LastOutcome.Reason,
	}).Warn("Delivery dropped after exhausting retries")
}

// CancelEntity cancels the pending retries for an entity that became
// irrelevant. A retry whose timer is already firing is not stopped.
func (rs *RetryScheduler) CancelEntity(entityRef string) int {
	rs.mu.Lock()
	ids := rs.byEntity[entityRef]
	cancelled := 0
	for id := range ids {
		entry, ok := rs.pending[id]
		if !ok {
			continue
		}
		entry.timer.Stop()
		rs.removeLocked(id, entityRef)
		cancelled++
	}
	rs.mu.Unlock()

	if cancelled > 0 {
		rs.statsMutex.Lock()
		rs.stats.Cancelled += int64(cancelled)
		rs.statsMutex.Unlock()
		rs.metrics.RetryCancelled(cancelled)

		logrus.WithFields(logrus.Fields{
			"entity_ref": entityRef,
			"cancelled":  cancelled,
		}).Info("Pending retries cancelled")
	}
	return cancelled
}

func (rs *RetryScheduler) removeLocked(id, entityRef string) {
	delete(rs.pending, id)
	if ids, ok := rs.byEntity[entityRef]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(rs.byEntity, entityRef)
		}
	}
}

func (rs *RetryScheduler) Pending() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.pending)
}

func (rs *RetryScheduler) Stats() models.RetryStats {
	rs.statsMutex.RLock()
	stats := rs.stats
	rs.statsMutex.RUnlock()

	stats.Pending = rs.Pending()
	return stats
}

// Stop discards pending retries and waits for running ones.
func (rs *RetryScheduler) Stop() {
	rs.mu.Lock()
	rs.stopped = true
	discarded := len(rs.pending)
	for id, entry := range rs.pending {
		entry.timer.Stop()
		rs.removeLocked(id, entry.attempt.Intent.EntityRef)
	}
	rs.mu.Unlock()

	rs.cancel()
	rs.wg.Wait()

	logrus.WithField("discarded", discarded).Info("Retry scheduler stopped")
}
