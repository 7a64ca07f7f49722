package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/repositories"
	"foodshare-notify/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeline struct {
	service    *NotificationService
	prefs      *fakePreferenceStore
	registry   *fakeRegistry
	geofence   *fakeGeofence
	gateway    *fakeGateway
	retries    *RetryScheduler
	aggregator *GroupingAggregator
	sink       *recordingSink
}

func newPipeline(t *testing.T, now time.Time) *pipeline {
	t.Helper()

	p := &pipeline{
		prefs:    newFakePreferenceStore(),
		registry: newFakeRegistry(),
		geofence: &fakeGeofence{},
		gateway:  newFakeGateway(),
		sink:     &recordingSink{},
	}

	p.retries = NewRetryScheduler([]time.Duration{time.Hour}, 0, nil)
	t.Cleanup(p.retries.Stop)

	dispatcher := NewDispatcher(p.registry, p.gateway, p.retries, nil, time.Second)
	p.aggregator = NewGroupingAggregator(GroupingConfig{Window: time.Hour}, p.sink.flush, nil)

	p.service = NewNotificationService(
		p.prefs,
		p.registry,
		p.geofence,
		NewEligibilityFilter(models.PriorityMedium),
		p.aggregator,
		dispatcher,
		p.retries,
		nil,
		NotificationServiceConfig{},
	)
	p.service.now = func() time.Time { return now }
	return p
}

func (p *pipeline) withQuietHours(userID string) {
	prefs := models.DefaultPreferences(userID)
	prefs.QuietHours = models.QuietHours{Enabled: true, StartTime: "22:00", EndTime: "06:00", Timezone: "UTC"}
	p.prefs.prefs[userID] = prefs
}

var noon = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

func listingEvent(id string) models.DomainEvent {
	return models.DomainEvent{
		ID:         "evt-listing-" + id,
		Category:   models.CategoryNewListing,
		EntityID:   id,
		ActorID:    "giver",
		Location:   &models.GeoPoint{Latitude: 52.52, Longitude: 13.405},
		Payload:    models.EventPayload{Title: "Sourdough loaf " + id},
		OccurredAt: noon,
	}
}

func messageEvent(id string, recipients ...string) models.DomainEvent {
	return models.DomainEvent{
		ID:           "evt-message-" + id,
		Category:     models.CategoryNewMessage,
		EntityID:     "conv-1",
		ActorID:      "sender",
		RecipientIDs: recipients,
		Payload:      models.EventPayload{ActorName: "Sam", Body: "Message " + id},
		OccurredAt:   noon,
	}
}

func TestHandleEventCollapsesNearbyListings(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.registry.add("u1", models.PlatformIOS, "ios-u1")
	p.geofence.users = []string{"u1"}

	for i := 1; i <= 4; i++ {
		result, err := p.service.HandleEvent(context.Background(), listingEvent(fmt.Sprint(i)))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Deferred)
	}
	assert.Zero(t, p.gateway.callCount())

	result, err := p.service.HandleEvent(context.Background(), listingEvent("5"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dispatched)

	payloads := p.gateway.payloads()
	require.Len(t, payloads, 1)
	apns := payloads[0].(models.APNSPayload)
	assert.Equal(t, "5 new listings near you", apns.Title)
	assert.Equal(t, "group:new_listing", apns.CollapseID)
	assert.Equal(t, "5", apns.Data[DataKeyTotalCount])
	assert.Equal(t, "foodshare://feed/new_listing", apns.Data[DataKeyDeepLink])
}

func TestHandleEventMessagesAreNeverGrouped(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.registry.add("u1", models.PlatformAndroid, "android-u1")

	for i := 1; i <= 5; i++ {
		result, err := p.service.HandleEvent(context.Background(), messageEvent(fmt.Sprint(i), "u1"))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Dispatched)
	}

	payloads := p.gateway.payloads()
	require.Len(t, payloads, 5)
	for _, payload := range payloads {
		android := payload.(models.AndroidPayload)
		assert.Equal(t, "Sam", android.Title)
		assert.Equal(t, "high", android.Priority)
	}
	assert.Zero(t, p.aggregator.PendingBuckets())
}

func TestHandleEventFewListingsFlushIndividually(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.registry.add("u1", models.PlatformIOS, "ios-u1")
	p.geofence.users = []string{"u1"}

	for i := 1; i <= 2; i++ {
		_, err := p.service.HandleEvent(context.Background(), listingEvent(fmt.Sprint(i)))
		require.NoError(t, err)
	}

	p.aggregator.FlushAll()

	released := p.sink.all()
	require.Len(t, released, 2)
	for _, intent := range released {
		assert.False(t, intent.IsCollapsed())
		assert.Equal(t, "New food near you", intent.Title)
	}
}

func TestHandleEventQuietHours(t *testing.T) {
	t.Parallel()

	lateEvening := time.Date(2026, 5, 2, 23, 30, 0, 0, time.UTC)
	p := newPipeline(t, lateEvening)
	p.withQuietHours("u1")
	p.registry.add("u1", models.PlatformIOS, "ios-u1")
	p.geofence.users = []string{"u1"}

	listing, err := p.service.HandleEvent(context.Background(), listingEvent("1"))
	require.NoError(t, err)
	assert.Equal(t, 1, listing.Excluded)

	accepted, err := p.service.HandleEvent(context.Background(), models.DomainEvent{
		ID:           "evt-res-1",
		Category:     models.CategoryReservationAccepted,
		EntityID:     "res-1",
		RecipientIDs: []string{"u1"},
		OccurredAt:   lateEvening,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted.Dispatched)

	payloads := p.gateway.payloads()
	require.Len(t, payloads, 1)
	apns := payloads[0].(models.APNSPayload)
	assert.Equal(t, "Reservation accepted", apns.Title)
	assert.Equal(t, models.InterruptionTimeSensitive, apns.InterruptionLevel)
}

func TestHandleEventResolutionUnavailable(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.geofence.err = errors.New("redis: i/o timeout")

	event := listingEvent("1")
	_, err := p.service.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.True(t, utils.IsResolutionUnavailable(err))

	// a failed event is not remembered, so redelivery is processed
	p.geofence.err = nil
	p.geofence.users = []string{"u1"}
	p.registry.add("u1", models.PlatformIOS, "ios-u1")

	result, err := p.service.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 1, result.Candidates)
}

func TestHandleEventDuplicate(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.registry.add("u1", models.PlatformAndroid, "android-u1")

	event := messageEvent("1", "u1")
	_, err := p.service.HandleEvent(context.Background(), event)
	require.NoError(t, err)

	result, err := p.service.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, 1, p.gateway.callCount())
}

func TestHandleEventConcurrentRedeliveriesFanOutOnce(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.registry.add("u1", models.PlatformAndroid, "android-u1")
	p.registry.add("u2", models.PlatformIOS, "ios-u2")

	event := messageEvent("1", "u1", "u2")

	const deliveries = 20
	var (
		wg         sync.WaitGroup
		processed  int32
		duplicates int32
	)
	start := make(chan struct{})
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := p.service.HandleEvent(context.Background(), event)
			if err != nil {
				return
			}
			if result.Duplicate {
				atomic.AddInt32(&duplicates, 1)
			} else {
				atomic.AddInt32(&processed, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), processed)
	assert.Equal(t, int32(deliveries-1), duplicates)
	assert.Equal(t, 2, p.gateway.callCount())
}

func TestHandleEventExcludesActorAndDeduplicatesRecipients(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.registry.add("u1", models.PlatformAndroid, "android-u1")
	p.registry.add("sender", models.PlatformAndroid, "android-sender")

	result, err := p.service.HandleEvent(context.Background(), messageEvent("1", "u1", "sender", "u1"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Candidates)
	assert.Zero(t, p.gateway.callsFor("android-sender"))
}

func TestHandleEventNoDevices(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)

	result, err := p.service.HandleEvent(context.Background(), messageEvent("1", "u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Excluded)
	assert.Zero(t, p.gateway.callCount())
}

func TestHandleEventRecipientFailureIsIsolated(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.prefs.err = errors.New("mongo: timeout")
	p.registry.add("u1", models.PlatformAndroid, "android-u1")

	result, err := p.service.HandleEvent(context.Background(), messageEvent("1", "u1", "u2"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Errors)
	assert.Zero(t, p.gateway.callCount())
}

func TestHandleEventInvalid(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)

	_, err := p.service.HandleEvent(context.Background(), models.DomainEvent{ID: "evt-1", Category: "bogus", EntityID: "1"})
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeValidation))

	_, err = p.service.HandleEvent(context.Background(), models.DomainEvent{ID: "evt-2", Category: models.CategoryNewMessage, EntityID: "1"})
	assert.True(t, utils.HasCode(err, utils.ErrCodeValidation), "messages need recipients")
}

func TestHandleEventWithdrawalCancelsRetries(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.registry.add("u1", models.PlatformIOS, "ios-u1")
	p.gateway.script("ios-u1", models.RetryableFailure("unavailable", nil))

	expiring := models.DomainEvent{
		ID:           "evt-exp-42",
		Category:     models.CategoryListingExpiring,
		EntityID:     "42",
		RecipientIDs: []string{"u1"},
		OccurredAt:   noon,
	}
	_, err := p.service.HandleEvent(context.Background(), expiring)
	require.NoError(t, err)

	// expiring is medium priority, push it past the grouping buffer
	p.aggregator.FlushAll()
	released := p.sink.all()
	require.Len(t, released, 1)

	dispatcher := NewDispatcher(p.registry, p.gateway, p.retries, nil, time.Second)
	result := dispatcher.Dispatch(context.Background(), released[0])
	require.Equal(t, 1, result.RetryScheduled)
	require.Equal(t, 1, p.retries.Pending())

	withdrawn, err := p.service.HandleEvent(context.Background(), models.DomainEvent{
		ID:         "evt-wd-42",
		Category:   models.CategoryListingWithdrawn,
		EntityID:   "42",
		OccurredAt: noon,
	})
	require.NoError(t, err)
	assert.Zero(t, withdrawn.Candidates)
	assert.Zero(t, p.retries.Pending())
	assert.Equal(t, int64(1), p.service.RetryStats().Cancelled)
}

func TestInvalidateEntity(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.retries.Schedule(models.DeliveryAttempt{
		Intent:  models.NotificationIntent{ID: "i1", EntityRef: "reservation/7"},
		Token:   models.DeviceToken{Token: "t1"},
		Attempt: 1,
	})

	assert.Equal(t, 1, p.service.InvalidateEntity("reservation/7"))
	assert.Zero(t, p.service.InvalidateEntity("reservation/7"))
}

func TestHandleEventNearbyListingScenario(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, noon)
	p.registry.add("A", models.PlatformIOS, "ios-a")
	p.registry.add("B", models.PlatformIOS, "ios-b")
	p.registry.add("C", models.PlatformAndroid, "android-c")

	prefsC := models.DefaultPreferences("C")
	prefsC.Categories[string(models.CategoryNewListing)] = false
	p.prefs.prefs["C"] = prefsC

	store := &fakeGeofenceStore{nearby: []repositories.NearbyUser{
		{UserID: "A", DistanceKm: 3, RadiusKm: 5},
		{UserID: "B", DistanceKm: 10, RadiusKm: 5},
		{UserID: "C", DistanceKm: 3, RadiusKm: 5},
	}}

	service := NewNotificationService(
		p.prefs,
		p.registry,
		NewGeofenceService(store),
		NewEligibilityFilter(models.PriorityMedium),
		p.aggregator,
		NewDispatcher(p.registry, p.gateway, p.retries, nil, time.Second),
		p.retries,
		nil,
		NotificationServiceConfig{},
	)
	service.now = func() time.Time { return noon }

	event := models.DomainEvent{
		ID:         "evt-fresh-bread",
		Category:   models.CategoryNewListing,
		EntityID:   "bread-1",
		Location:   &models.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
		Payload:    models.EventPayload{Title: "Fresh Bread"},
		OccurredAt: noon,
	}

	result, err := service.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Candidates, "B is outside its own radius")
	assert.Equal(t, 1, result.Excluded, "C disabled the category")
	assert.Equal(t, 1, result.Deferred, "A waits in its group")

	p.aggregator.FlushAll()
	intents := p.sink.all()
	require.Len(t, intents, 1)
	assert.Equal(t, "A", intents[0].RecipientID)
	assert.Equal(t, models.PriorityMedium, intents[0].Priority)
	assert.Equal(t, "Fresh Bread", intents[0].Body)
}
