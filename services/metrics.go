package services

import (
	"context"
	"time"

	"foodshare-notify/interfaces"
	"foodshare-notify/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsTotal       *prometheus.CounterVec
	excludedTotal     *prometheus.CounterVec
	intentsDispatched *prometheus.CounterVec
	intentsCollapsed  *prometheus.CounterVec
	deliveriesTotal   *prometheus.CounterVec
	deliveryDuration  *prometheus.SummaryVec
	tokensPruned      prometheus.Counter
	retriesScheduled  prometheus.Counter
	retriesDropped    prometheus.Counter
	retriesCancelled  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_events_total",
			Help: "Domain events handled, by category and result",
		}, []string{"category", "result"}),
		excludedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_recipients_excluded_total",
			Help: "Recipients excluded by the eligibility filter",
		}, []string{"category", "reason"}),
		intentsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_intents_dispatched_total",
			Help: "Notification intents handed to the dispatcher",
		}, []string{"category", "priority"}),
		intentsCollapsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_intents_collapsed_total",
			Help: "Intents merged into a collapsed group notification",
		}, []string{"category"}),
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Push gateway deliveries by platform and outcome",
		}, []string{"platform", "outcome"}),
		deliveryDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "notify_delivery_duration_seconds",
			Help:       "Push gateway call latency",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			MaxAge:     5 * time.Minute,
		}, []string{"platform", "outcome"}),
		tokensPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_tokens_pruned_total",
			Help: "Device tokens pruned after a permanent gateway failure",
		}),
		retriesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_retries_scheduled_total",
			Help: "Delivery retries scheduled",
		}),
		retriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_retries_dropped_total",
			Help: "Deliveries dropped after the retry budget ran out",
		}),
		retriesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_retries_cancelled_total",
			Help: "Pending retries cancelled because their entity was superseded",
		}),
	}

	reg.MustRegister(
		m.eventsTotal,
		m.excludedTotal,
		m.intentsDispatched,
		m.intentsCollapsed,
		m.deliveriesTotal,
		m.deliveryDuration,
		m.tokensPruned,
		m.retriesScheduled,
		m.retriesDropped,
		m.retriesCancelled,
	)
	return m
}

func (m *Metrics) EventHandled(category models.EventCategory, result string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(category), result).Inc()
}

func (m *Metrics) RecipientExcluded(category models.EventCategory, reason models.ExclusionReason) {
	if m == nil {
		return
	}
	m.excludedTotal.WithLabelValues(string(category), string(reason)).Inc()
}

func (m *Metrics) IntentDispatched(intent models.NotificationIntent) {
	if m == nil {
		return
	}
	m.intentsDispatched.WithLabelValues(string(intent.Category), string(intent.Priority)).Inc()
}

func (m *Metrics) IntentsCollapsed(category models.EventCategory, count int) {
	if m == nil {
		return
	}
	m.intentsCollapsed.WithLabelValues(string(category)).Add(float64(count))
}

func (m *Metrics) TokenPruned() {
	if m == nil {
		return
	}
	m.tokensPruned.Inc()
}

func (m *Metrics) RetryScheduled() {
	if m == nil {
		return
	}
	m.retriesScheduled.Inc()
}

func (m *Metrics) RetryDropped() {
	if m == nil {
		return
	}
	m.retriesDropped.Inc()
}

func (m *Metrics) RetryCancelled(count int) {
	if m == nil {
		return
	}
	m.retriesCancelled.Add(float64(count))
}

// InstrumentedGateway records outcome counts and latency around a gateway.
type InstrumentedGateway struct {
	gateway interfaces.PushGateway
	metrics *Metrics
}

func NewInstrumentedGateway(gateway interfaces.PushGateway, metrics *Metrics) *InstrumentedGateway {
	return &InstrumentedGateway{gateway: gateway, metrics: metrics}
}

func (g *InstrumentedGateway) Deliver(ctx context.Context, token models.DeviceToken, payload models.PlatformPayload) models.DeliveryOutcome {
	start := time.Now()
	outcome := g.gateway.Deliver(ctx, token, payload)

	if g.metrics != nil {
		platform := string(payload.Platform())
		status := string(outcome.Status)
		g.metrics.deliveriesTotal.WithLabelValues(platform, status).Inc()
		g.metrics.deliveryDuration.WithLabelValues(platform, status).Observe(time.Since(start).Seconds())
	}
	return outcome
}
