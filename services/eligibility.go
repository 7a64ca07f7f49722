package services

import (
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"
)

var categoryPriorities = map[models.EventCategory]models.Priority{
	models.CategoryNewMessage:          models.PriorityHigh,
	models.CategoryReservationAccepted: models.PriorityHigh,
	models.CategoryNewListing:          models.PriorityMedium,
	models.CategoryReservationUpdated:  models.PriorityMedium,
	models.CategoryListingExpiring:     models.PriorityMedium,
	models.CategoryWeeklySummary:       models.PriorityLow,
	models.CategoryTips:                models.PriorityLow,
}

// EligibilityFilter decides whether one candidate receives one event and at
// what priority. It holds no mutable state.
type EligibilityFilter struct {
	defaultPriority models.Priority
}

func NewEligibilityFilter(defaultPriority models.Priority) *EligibilityFilter {
	if defaultPriority.Rank() == 0 {
		defaultPriority = models.PriorityMedium
	}
	return &EligibilityFilter{defaultPriority: defaultPriority}
}

// PriorityFor returns the category priority, or the configured default for
// categories without a mapping.
func (f *EligibilityFilter) PriorityFor(category models.EventCategory) models.Priority {
	if priority, ok := categoryPriorities[category]; ok {
		return priority
	}
	return f.defaultPriority
}

// Evaluate applies the exclusion rules in order; the first match wins.
func (f *EligibilityFilter) Evaluate(candidate models.RecipientCandidate, event models.DomainEvent, now time.Time) models.Decision {
	if !candidate.Preferences.IsCategoryEnabled(event.Category) {
		return models.Excluded(models.ExcludedCategoryDisabled)
	}

	if len(candidate.Tokens) == 0 {
		return models.Excluded(models.ExcludedNoDevices)
	}

	priority := f.PriorityFor(event.Category)
	if priority != models.PriorityHigh && IsQuietHours(candidate.Preferences.QuietHours, now) {
		return models.Excluded(models.ExcludedQuietHours)
	}

	return models.Included(priority)
}

// IsQuietHours evaluates the window in the recipient's own timezone. A window
// that cannot be parsed never suppresses anything.
func IsQuietHours(quietHours models.QuietHours, now time.Time) bool {
	if !quietHours.Enabled {
		return false
	}

	inside, err := utils.InDailyWindow(now, quietHours.StartTime, quietHours.EndTime, utils.LoadLocation(quietHours.Timezone))
	if err != nil {
		return false
	}
	return inside
}
