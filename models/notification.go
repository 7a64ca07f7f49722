package models

import (
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities, higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), true
	default:
		return "", false
	}
}

type InterruptionLevel string

const (
	InterruptionTimeSensitive InterruptionLevel = "time-sensitive"
	InterruptionActive        InterruptionLevel = "active"
	InterruptionPassive       InterruptionLevel = "passive"
)

// InterruptionLevel maps a priority onto the platform interruption level.
func (p Priority) InterruptionLevel() InterruptionLevel {
	switch p {
	case PriorityHigh:
		return InterruptionTimeSensitive
	case PriorityLow:
		return InterruptionPassive
	default:
		return InterruptionActive
	}
}

// NotificationIntent is the decided unit of delivery for one recipient.
type NotificationIntent struct {
	ID          string        `json:"id"`
	EventID     string        `json:"eventId"`
	RecipientID string        `json:"recipientId"`
	Category    EventCategory `json:"category"`
	Priority    Priority      `json:"priority"`
	Title       string        `json:"title"`
	Body        string        `json:"body"`
	GroupingKey string        `json:"groupingKey"`
	CollapseID  string        `json:"collapseId"`
	EntityRef   string        `json:"entityRef"`

	// Set on collapsed intents only. EntityRefs is newest first.
	EntityRefs []string `json:"entityRefs,omitempty"`
	TotalCount int      `json:"totalCount,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (n NotificationIntent) IsCollapsed() bool {
	return n.TotalCount > 1
}

type QuietHours struct {
	Enabled   bool   `json:"enabled" bson:"enabled"`
	StartTime string `json:"startTime" bson:"startTime" validate:"omitempty,clock"` // HH:MM
	EndTime   string `json:"endTime" bson:"endTime" validate:"omitempty,clock"`     // HH:MM
	Timezone  string `json:"timezone" bson:"timezone"`                              // IANA name, UTC when empty
}

type NotificationPreferences struct {
	UserID           string          `json:"userId" bson:"_id"`
	Categories       map[string]bool `json:"categories" bson:"categories"`
	QuietHours       QuietHours      `json:"quietHours" bson:"quietHours"`
	GeofenceRadiusKm float64         `json:"geofenceRadiusKm" bson:"geofenceRadiusKm"`
	UpdatedAt        time.Time       `json:"updatedAt" bson:"updatedAt"`
}

const DefaultGeofenceRadiusKm = 5.0

// DefaultPreferences is used when a user has no stored preference record:
// every category enabled, no quiet hours.
func DefaultPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:           userID,
		Categories:       map[string]bool{},
		GeofenceRadiusKm: DefaultGeofenceRadiusKm,
	}
}

// IsCategoryEnabled treats a missing toggle as enabled.
func (p NotificationPreferences) IsCategoryEnabled(category EventCategory) bool {
	enabled, ok := p.Categories[string(category)]
	return !ok || enabled
}

type UpdatePreferencesRequest struct {
	Categories       map[string]bool `json:"categories"`
	QuietHours       *QuietHours     `json:"quietHours,omitempty"`
	GeofenceRadiusKm *float64        `json:"geofenceRadiusKm,omitempty" validate:"omitempty,gte=1,lte=100"`
}

// RecipientCandidate is a user considered for one event.
type RecipientCandidate struct {
	UserID      string
	Preferences NotificationPreferences
	Tokens      []DeviceToken
}

type ExclusionReason string

const (
	ExcludedCategoryDisabled ExclusionReason = "category-disabled"
	ExcludedNoDevices        ExclusionReason = "no-devices"
	ExcludedQuietHours       ExclusionReason = "quiet-hours"
)

// Decision is the eligibility filter output: Included(priority) or Excluded(reason).
type Decision struct {
	Included bool
	Priority Priority
	Reason   ExclusionReason
}

func Included(priority Priority) Decision {
	return Decision{Included: true, Priority: priority}
}

func Excluded(reason ExclusionReason) Decision {
	return Decision{Reason: reason}
}
