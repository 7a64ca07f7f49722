package services

import (
	"context"
	"sync/atomic"
	"time"

	"foodshare-notify/interfaces"
	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type NotificationServiceConfig struct {
	SearchRadiusKm    float64
	GeofenceTimeout   time.Duration
	FanoutConcurrency int
	DedupeTTL         time.Duration
}

type recipientOutcome int

const (
	recipientDispatched recipientOutcome = iota
	recipientExcluded
	recipientDeferred
	recipientFailed
)

var defaultTitles = map[models.EventCategory]string{
	models.CategoryNewListing:          "New food near you",
	models.CategoryNewMessage:          "New message",
	models.CategoryReservationAccepted: "Reservation accepted",
	models.CategoryReservationUpdated:  "Reservation updated",
	models.CategoryListingExpiring:     "Listing expiring soon",
	models.CategoryWeeklySummary:       "Your week on FoodShare",
	models.CategoryTips:                "Tip of the week",
}

// NotificationService is the pipeline entry point: one HandleEvent call per
// inbound domain event.
type NotificationService struct {
	prefs      interfaces.PreferenceStore
	registry   interfaces.DeviceRegistry
	geofence   interfaces.GeofenceIndex
	filter     *EligibilityFilter
	aggregator *GroupingAggregator
	dispatcher interfaces.IntentDispatcher
	retries    *RetryScheduler
	metrics    *Metrics
	validator  *utils.ValidationService
	seen       *cache.Cache
	cfg        NotificationServiceConfig
	now        func() time.Time
}

func NewNotificationService(
	prefs interfaces.PreferenceStore,
	registry interfaces.DeviceRegistry,
	geofence interfaces.GeofenceIndex,
	filter *EligibilityFilter,
	aggregator *GroupingAggregator,
	dispatcher interfaces.IntentDispatcher,
	retries *RetryScheduler,
	metrics *Metrics,
	cfg NotificationServiceConfig,
) *NotificationService {
	if cfg.SearchRadiusKm <= 0 {
		cfg.SearchRadiusKm = utils.MaxGeofenceRadiusKm
	}
	if cfg.GeofenceTimeout <= 0 {
		cfg.GeofenceTimeout = 3 * time.Second
	}
	if cfg.FanoutConcurrency <= 0 {
		cfg.FanoutConcurrency = 16
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 15 * time.Minute
	}

	return &NotificationService{
		prefs:      prefs,
		registry:   registry,
		geofence:   geofence,
		filter:     filter,
		aggregator: aggregator,
		dispatcher: dispatcher,
		retries:    retries,
		metrics:    metrics,
		validator:  utils.NewValidationService(),
		seen:       cache.New(cfg.DedupeTTL, 2*cfg.DedupeTTL),
		cfg:        cfg,
		now:        time.Now,
	}
}

// HandleEvent runs one event through recipient resolution, eligibility,
// grouping and dispatch. Failures for one recipient never affect the others
// and are only counted. The returned error is non-nil for invalid events and
// for ResolutionUnavailable, which the event source should redeliver.
func (ns *NotificationService) HandleEvent(ctx context.Context, event models.DomainEvent) (models.ProcessingResult, error) {
	result := models.ProcessingResult{EventID: event.ID}

	if err := ns.validator.ValidateEvent(event); err != nil {
		ns.metrics.EventHandled(event.Category, "invalid")
		return result, err
	}

	// The id is claimed before fan-out and released only when the event has
	// to be redelivered.
	if err := ns.seen.Add(event.ID, struct{}{}, cache.DefaultExpiration); err != nil {
		result.Duplicate = true
		ns.metrics.EventHandled(event.Category, "duplicate")
		return result, nil
	}

	logger := logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"category":   event.Category,
		"entity_ref": event.EntityRef(),
	})

	if event.Category.SupersedesEntity() && ns.retries != nil {
		ns.retries.CancelEntity(event.EntityRef())
	}

	if !event.Category.Notifies() {
		ns.metrics.EventHandled(event.Category, "control")
		logger.Debug("Control event handled")
		return result, nil
	}

	recipients, err := ns.resolveRecipients(ctx, event)
	if err != nil {
		ns.seen.Delete(event.ID)
		ns.metrics.EventHandled(event.Category, "unresolved")
		logger.WithError(err).Warn("Recipient resolution failed")
		return result, err
	}
	result.Candidates = len(recipients)

	var dispatched, excluded, deferred, failed int64

	var g errgroup.Group
	g.SetLimit(ns.cfg.FanoutConcurrency)
	for _, userID := range recipients {
		userID := userID
		g.Go(func() error {
			count, outcome := ns.processRecipient(ctx, event, userID)
			switch outcome {
			case recipientDispatched:
				atomic.AddInt64(&dispatched, int64(count))
			case recipientExcluded:
				atomic.AddInt64(&excluded, 1)
			case recipientDeferred:
				atomic.AddInt64(&deferred, 1)
			case recipientFailed:
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Dispatched = int(dispatched)
	result.Excluded = int(excluded)
	result.Deferred = int(deferred)
	result.Errors = int(failed)

	ns.metrics.EventHandled(event.Category, "processed")

	logger.WithFields(logrus.Fields{
		"candidates": result.Candidates,
		"dispatched": result.Dispatched,
		"excluded":   result.Excluded,
		"deferred":   result.Deferred,
		"errors":     result.Errors,
	}).Info("Event processed")

	return result, nil
}

func (ns *NotificationService) resolveRecipients(ctx context.Context, event models.DomainEvent) ([]string, error) {
	recipients := append([]string{}, event.RecipientIDs...)

	if event.Category.IsLocationScoped() && event.Location != nil {
		geoCtx, cancel := context.WithTimeout(ctx, ns.cfg.GeofenceTimeout)
		defer cancel()

		nearby, err := ns.geofence.FindNearbyUsers(geoCtx, *event.Location, ns.cfg.SearchRadiusKm, event.Category)
		if err != nil {
			if !utils.IsResolutionUnavailable(err) {
				err = utils.NewResolutionUnavailableError(err)
			}
			return nil, err
		}
		recipients = append(recipients, nearby...)
	}

	unique := utils.UniqueStrings(recipients)
	filtered := unique[:0]
	for _, userID := range unique {
		if userID != event.ActorID {
			filtered = append(filtered, userID)
		}
	}
	return filtered, nil
}

func (ns *NotificationService) processRecipient(ctx context.Context, event models.DomainEvent, userID string) (int, recipientOutcome) {
	logger := logrus.WithFields(logrus.Fields{
		"event_id": event.ID,
		"user_id":  userID,
	})

	prefs, err := ns.preferencesFor(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to load notification preferences")
		return 0, recipientFailed
	}

	tokens, err := ns.registry.GetActiveTokens(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to load device tokens")
		return 0, recipientFailed
	}

	candidate := models.RecipientCandidate{
		UserID:      userID,
		Preferences: prefs,
		Tokens:      tokens,
	}

	decision := ns.filter.Evaluate(candidate, event, ns.now())
	if !decision.Included {
		ns.metrics.RecipientExcluded(event.Category, decision.Reason)
		logger.WithField("reason", decision.Reason).Debug("Recipient excluded")
		return 0, recipientExcluded
	}

	intent := ns.buildIntent(event, userID, decision.Priority)
	ready := ns.aggregator.Add(intent)
	if len(ready) == 0 {
		return 0, recipientDeferred
	}

	failed := false
	for _, readyIntent := range ready {
		if res := ns.dispatcher.Dispatch(ctx, readyIntent); res.Err != nil {
			failed = true
		}
	}
	if failed {
		return 0, recipientFailed
	}
	return len(ready), recipientDispatched
}

// preferencesFor falls back to defaults when the user has no stored record.
func (ns *NotificationService) preferencesFor(ctx context.Context, userID string) (models.NotificationPreferences, error) {
	prefs, err := ns.prefs.GetPreferences(ctx, userID)
	if err != nil {
		if utils.HasCode(err, utils.ErrCodeConfigurationMissing) {
			return models.DefaultPreferences(userID), nil
		}
		return models.NotificationPreferences{}, err
	}
	if prefs == nil {
		return models.DefaultPreferences(userID), nil
	}
	return *prefs, nil
}

func (ns *NotificationService) buildIntent(event models.DomainEvent, userID string, priority models.Priority) models.NotificationIntent {
	entityRef := event.EntityRef()
	title, body := intentContent(event)

	return models.NotificationIntent{
		ID:          utils.GenerateUUID(),
		EventID:     event.ID,
		RecipientID: userID,
		Category:    event.Category,
		Priority:    priority,
		Title:       title,
		Body:        body,
		GroupingKey: GroupingKey(userID, event.Category),
		CollapseID:  string(event.Category) + ":" + entityRef,
		EntityRef:   entityRef,
		CreatedAt:   ns.now(),
	}
}

func intentContent(event models.DomainEvent) (string, string) {
	title := event.Payload.Title
	body := event.Payload.Body

	switch event.Category {
	case models.CategoryNewMessage:
		if event.Payload.ActorName != "" {
			title = event.Payload.ActorName
		}
	case models.CategoryNewListing:
		if body == "" && title != "" {
			body = title
			title = defaultTitles[event.Category]
		}
	}

	if title == "" {
		title = defaultTitles[event.Category]
	}
	return utils.TruncateString(title, 120), utils.TruncateString(body, 240)
}

func (ns *NotificationService) GroupingStats() models.GroupingStats {
	return ns.aggregator.Stats()
}

func (ns *NotificationService) RetryStats() models.RetryStats {
	if ns.retries == nil {
		return models.RetryStats{}
	}
	return ns.retries.Stats()
}

// InvalidateEntity cancels pending retries for an entity that was claimed,
// deleted or superseded out of band.
func (ns *NotificationService) InvalidateEntity(entityRef string) int {
	if ns.retries == nil {
		return 0
	}
	return ns.retries.CancelEntity(entityRef)
}
