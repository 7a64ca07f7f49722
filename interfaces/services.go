package interfaces

import (
	"context"
	"time"

	"foodshare-notify/models"
)

// PreferenceStore returns a ConfigurationMissing service error when the user
// has no stored preference record.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
}

type DeviceRegistry interface {
	GetActiveTokens(ctx context.Context, userID string) ([]models.DeviceToken, error)
	// PruneToken is idempotent: pruning an unknown token is not an error.
	PruneToken(ctx context.Context, token string) error
	ConfirmToken(ctx context.Context, token string, at time.Time) error
}

type GeofenceIndex interface {
	FindNearbyUsers(ctx context.Context, point models.GeoPoint, radiusKm float64, category models.EventCategory) ([]string, error)
}

// PushGateway never returns an error; every failure is classified into the outcome.
type PushGateway interface {
	Deliver(ctx context.Context, token models.DeviceToken, payload models.PlatformPayload) models.DeliveryOutcome
}

type IntentDispatcher interface {
	Dispatch(ctx context.Context, intent models.NotificationIntent) models.DispatchResult
}

type EventHandler interface {
	HandleEvent(ctx context.Context, event models.DomainEvent) (models.ProcessingResult, error)
}
