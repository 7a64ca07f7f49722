package models

import (
	"time"
)

type EventCategory string

// Event categories
const (
	CategoryNewListing          EventCategory = "new_listing"
	CategoryNewMessage          EventCategory = "new_message"
	CategoryReservationAccepted EventCategory = "reservation_accepted"
	CategoryReservationUpdated  EventCategory = "reservation_updated"
	CategoryListingExpiring     EventCategory = "listing_expiring"
	CategoryListingWithdrawn    EventCategory = "listing_withdrawn"
	CategoryWeeklySummary       EventCategory = "weekly_summary"
	CategoryTips                EventCategory = "tips"
)

// KnownCategories lists every category the pipeline understands.
var KnownCategories = []EventCategory{
	CategoryNewListing,
	CategoryNewMessage,
	CategoryReservationAccepted,
	CategoryReservationUpdated,
	CategoryListingExpiring,
	CategoryListingWithdrawn,
	CategoryWeeklySummary,
	CategoryTips,
}

// IsLocationScoped reports whether recipients are resolved through the geofence index.
func (c EventCategory) IsLocationScoped() bool {
	return c == CategoryNewListing
}

// SupersedesEntity reports whether a new event of this category makes pending
// retries for the same entity irrelevant.
func (c EventCategory) SupersedesEntity() bool {
	switch c {
	case CategoryReservationAccepted, CategoryReservationUpdated,
		CategoryListingExpiring, CategoryListingWithdrawn:
		return true
	default:
		return false
	}
}

// Notifies is false for control events that only cancel pending work.
func (c EventCategory) Notifies() bool {
	return c != CategoryListingWithdrawn
}

// DefaultEntityType is used when the event payload does not name one.
func (c EventCategory) DefaultEntityType() string {
	switch c {
	case CategoryNewMessage:
		return "conversation"
	case CategoryReservationAccepted, CategoryReservationUpdated:
		return "reservation"
	case CategoryWeeklySummary, CategoryTips:
		return "feed"
	default:
		return "listing"
	}
}

func IsKnownCategory(c EventCategory) bool {
	for _, known := range KnownCategories {
		if known == c {
			return true
		}
	}
	return false
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude" validate:"coordinate"`
	Longitude float64 `json:"longitude" bson:"longitude" validate:"coordinate"`
}

type EventPayload struct {
	Title      string `json:"title,omitempty" bson:"title,omitempty" validate:"max=200"`
	Body       string `json:"body,omitempty" bson:"body,omitempty" validate:"max=1000"`
	ActorName  string `json:"actorName,omitempty" bson:"actorName,omitempty"`
	EntityType string `json:"entityType,omitempty" bson:"entityType,omitempty"`
}

// DomainEvent is an upstream occurrence that may warrant a notification.
// Events are immutable once received.
type DomainEvent struct {
	ID           string        `json:"id" bson:"_id" validate:"required"`
	Category     EventCategory `json:"category" bson:"category" validate:"required,event_category"`
	EntityID     string        `json:"entityId" bson:"entityId" validate:"required"`
	ActorID      string        `json:"actorId,omitempty" bson:"actorId,omitempty"`
	Location     *GeoPoint     `json:"location,omitempty" bson:"location,omitempty"`
	RecipientIDs []string      `json:"recipientIds,omitempty" bson:"recipientIds,omitempty" validate:"dive,required"`
	Payload      EventPayload  `json:"payload" bson:"payload"`
	OccurredAt   time.Time     `json:"occurredAt" bson:"occurredAt"`
}

// EntityRef is the deep-link reference of the entity the event is about,
// e.g. "listing/42".
func (e DomainEvent) EntityRef() string {
	entityType := e.Payload.EntityType
	if entityType == "" {
		entityType = e.Category.DefaultEntityType()
	}
	return entityType + "/" + e.EntityID
}

// ProcessingResult summarizes one HandleEvent call.
type ProcessingResult struct {
	EventID    string `json:"eventId"`
	Candidates int    `json:"candidates"`
	Dispatched int    `json:"dispatched"`
	Excluded   int    `json:"excluded"`
	Deferred   int    `json:"deferred"`
	Errors     int    `json:"errors"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}
