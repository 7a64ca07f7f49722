package services

import (
	"context"
	"sync"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"
)

type fakePreferenceStore struct {
	mu    sync.Mutex
	prefs map[string]models.NotificationPreferences
	err   error
}

func newFakePreferenceStore() *fakePreferenceStore {
	return &fakePreferenceStore{prefs: make(map[string]models.NotificationPreferences)}
}

func (f *fakePreferenceStore) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	prefs, ok := f.prefs[userID]
	if !ok {
		return nil, utils.NewConfigurationMissingError("notification preferences")
	}
	return &prefs, nil
}

func (f *fakePreferenceStore) UpsertPreferences(ctx context.Context, prefs *models.NotificationPreferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.prefs[prefs.UserID] = clonePreferences(*prefs)
	return nil
}

type fakeRegistry struct {
	mu        sync.Mutex
	tokens    map[string][]models.DeviceToken
	pruned    []string
	confirmed []string
	err       error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{tokens: make(map[string][]models.DeviceToken)}
}

func (f *fakeRegistry) add(userID string, platform models.Platform, token string) models.DeviceToken {
	f.mu.Lock()
	defer f.mu.Unlock()

	device := models.DeviceToken{
		Token:           token,
		UserID:          userID,
		Platform:        platform,
		RegisteredAt:    time.Now(),
		LastConfirmedAt: time.Now(),
	}
	f.tokens[userID] = append(f.tokens[userID], device)
	return device
}

func (f *fakeRegistry) GetActiveTokens(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return append([]models.DeviceToken(nil), f.tokens[userID]...), nil
}

func (f *fakeRegistry) PruneToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pruned = append(f.pruned, token)
	for userID, devices := range f.tokens {
		kept := devices[:0]
		for _, d := range devices {
			if d.Token != token {
				kept = append(kept, d)
			}
		}
		f.tokens[userID] = kept
	}
	return nil
}

func (f *fakeRegistry) ConfirmToken(ctx context.Context, token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.confirmed = append(f.confirmed, token)
	return nil
}

func (f *fakeRegistry) prunedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pruned...)
}

func (f *fakeRegistry) confirmedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.confirmed...)
}

type fakeGeofence struct {
	mu     sync.Mutex
	users  []string
	err    error
	calls  int
	radius float64
}

func (f *fakeGeofence) FindNearbyUsers(ctx context.Context, point models.GeoPoint, radiusKm float64, category models.EventCategory) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.radius = radiusKm
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.users...), nil
}

type deliveryCall struct {
	token   models.DeviceToken
	payload models.PlatformPayload
}

// fakeGateway answers with the outcome scripted for the token, falling back
// to success.
type fakeGateway struct {
	mu       sync.Mutex
	calls    []deliveryCall
	outcomes map[string][]models.DeliveryOutcome
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{outcomes: make(map[string][]models.DeliveryOutcome)}
}

func (f *fakeGateway) script(token string, outcomes ...models.DeliveryOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[token] = append(f.outcomes[token], outcomes...)
}

func (f *fakeGateway) Deliver(ctx context.Context, token models.DeviceToken, payload models.PlatformPayload) models.DeliveryOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, deliveryCall{token: token, payload: payload})

	queue := f.outcomes[token.Token]
	if len(queue) == 0 {
		return models.Succeeded("msg-" + token.Token)
	}
	outcome := queue[0]
	if len(queue) > 1 {
		f.outcomes[token.Token] = queue[1:]
	}
	return outcome
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGateway) callsFor(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c.token.Token == token {
			n++
		}
	}
	return n
}

func (f *fakeGateway) payloads() []models.PlatformPayload {
	f.mu.Lock()
	defer f.mu.Unlock()

	payloads := make([]models.PlatformPayload, 0, len(f.calls))
	for _, c := range f.calls {
		payloads = append(payloads, c.payload)
	}
	return payloads
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.NotificationIntent
}

func (r *recordingSink) flush(intents []models.NotificationIntent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, intents)
}

func (r *recordingSink) all() []models.NotificationIntent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var intents []models.NotificationIntent
	for _, batch := range r.batches {
		intents = append(intents, batch...)
	}
	return intents
}
