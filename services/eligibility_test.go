package services

import (
	"testing"
	"time"

	"foodshare-notify/models"

	"github.com/stretchr/testify/assert"
)

func candidateWith(prefs models.NotificationPreferences, tokens int) models.RecipientCandidate {
	candidate := models.RecipientCandidate{UserID: prefs.UserID, Preferences: prefs}
	for i := 0; i < tokens; i++ {
		candidate.Tokens = append(candidate.Tokens, models.DeviceToken{
			Token:    "token-" + prefs.UserID,
			UserID:   prefs.UserID,
			Platform: models.PlatformIOS,
		})
	}
	return candidate
}

func quietNight() models.QuietHours {
	return models.QuietHours{Enabled: true, StartTime: "22:00", EndTime: "06:00"}
}

func TestEligibilityFilterEvaluate(t *testing.T) {
	t.Parallel()

	filter := NewEligibilityFilter(models.PriorityMedium)
	lateEvening := time.Date(2026, 5, 2, 23, 30, 0, 0, time.UTC)
	noon := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	quiet := models.DefaultPreferences("u1")
	quiet.QuietHours = quietNight()

	listingsOff := models.DefaultPreferences("u1")
	listingsOff.Categories[string(models.CategoryNewListing)] = false
	listingsOff.QuietHours = quietNight()

	testCases := []struct {
		name      string
		candidate models.RecipientCandidate
		category  models.EventCategory
		now       time.Time
		want      models.Decision
	}{
		{
			name:      "defaults include",
			candidate: candidateWith(models.DefaultPreferences("u1"), 1),
			category:  models.CategoryNewListing,
			now:       noon,
			want:      models.Included(models.PriorityMedium),
		},
		{
			name:      "disabled category wins over every other rule",
			candidate: candidateWith(listingsOff, 0),
			category:  models.CategoryNewListing,
			now:       lateEvening,
			want:      models.Excluded(models.ExcludedCategoryDisabled),
		},
		{
			name:      "no devices",
			candidate: candidateWith(quiet, 0),
			category:  models.CategoryNewListing,
			now:       lateEvening,
			want:      models.Excluded(models.ExcludedNoDevices),
		},
		{
			name:      "medium priority suppressed in quiet hours",
			candidate: candidateWith(quiet, 1),
			category:  models.CategoryNewListing,
			now:       lateEvening,
			want:      models.Excluded(models.ExcludedQuietHours),
		},
		{
			name:      "medium priority outside quiet hours",
			candidate: candidateWith(quiet, 1),
			category:  models.CategoryNewListing,
			now:       noon,
			want:      models.Included(models.PriorityMedium),
		},
		{
			name:      "high priority ignores quiet hours",
			candidate: candidateWith(quiet, 1),
			category:  models.CategoryReservationAccepted,
			now:       lateEvening,
			want:      models.Included(models.PriorityHigh),
		},
		{
			name:      "low priority suppressed in quiet hours",
			candidate: candidateWith(quiet, 2),
			category:  models.CategoryTips,
			now:       lateEvening,
			want:      models.Excluded(models.ExcludedQuietHours),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			event := models.DomainEvent{ID: "e", Category: tc.category, EntityID: "1"}
			assert.Equal(t, tc.want, filter.Evaluate(tc.candidate, event, tc.now))
		})
	}
}

func TestPriorityFor(t *testing.T) {
	t.Parallel()

	filter := NewEligibilityFilter(models.PriorityLow)

	assert.Equal(t, models.PriorityHigh, filter.PriorityFor(models.CategoryNewMessage))
	assert.Equal(t, models.PriorityHigh, filter.PriorityFor(models.CategoryReservationAccepted))
	assert.Equal(t, models.PriorityMedium, filter.PriorityFor(models.CategoryNewListing))
	assert.Equal(t, models.PriorityLow, filter.PriorityFor(models.CategoryWeeklySummary))
	assert.Equal(t, models.PriorityLow, filter.PriorityFor("unmapped"), "falls back to configured default")

	assert.Equal(t, models.PriorityMedium, NewEligibilityFilter("").PriorityFor("unmapped"))
}

func TestIsQuietHours(t *testing.T) {
	t.Parallel()

	lateEvening := time.Date(2026, 5, 2, 23, 30, 0, 0, time.UTC)

	assert.True(t, IsQuietHours(quietNight(), lateEvening))
	assert.False(t, IsQuietHours(quietNight(), time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)))

	disabled := quietNight()
	disabled.Enabled = false
	assert.False(t, IsQuietHours(disabled, lateEvening))

	broken := models.QuietHours{Enabled: true, StartTime: "late", EndTime: "06:00"}
	assert.False(t, IsQuietHours(broken, lateEvening), "unparseable window never suppresses")

	unknownZone := quietNight()
	unknownZone.Timezone = "Mars/Olympus_Mons"
	assert.True(t, IsQuietHours(unknownZone, lateEvening), "unknown timezone is treated as UTC")
}
