package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"foodshare-notify/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayloadIOS(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	intent := dispatchIntent("u1")
	intent.CreatedAt = created

	built, err := BuildPayload(intent, models.PlatformIOS)
	require.NoError(t, err)

	apns, ok := built.(models.APNSPayload)
	require.True(t, ok)
	assert.Equal(t, 10, apns.Priority)
	assert.Equal(t, models.InterruptionTimeSensitive, apns.InterruptionLevel)
	assert.Equal(t, "default", apns.Sound)
	assert.Equal(t, "u1:new_message", apns.ThreadID)
	assert.Equal(t, created.Add(24*time.Hour), apns.Expiration)
	assert.Equal(t, "foodshare://conversation/9", apns.Data[DataKeyDeepLink])
	assert.Equal(t, "conversation/9", apns.Data[DataKeyEntityRef])
	assert.Equal(t, "high", apns.Data[DataKeyPriority])
}

func TestBuildPayloadAndroid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		priority models.Priority
		category models.EventCategory
		channel  string
		android  string
		ttl      time.Duration
	}{
		{"message", models.PriorityHigh, models.CategoryNewMessage, "messages", "high", 24 * time.Hour},
		{"listing", models.PriorityMedium, models.CategoryNewListing, "nearby_listings", "normal", 12 * time.Hour},
		{"summary", models.PriorityLow, models.CategoryWeeklySummary, "digest", "normal", 72 * time.Hour},
		{"unmapped", models.PriorityMedium, models.EventCategory("promo"), "general", "normal", 12 * time.Hour},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			intent := dispatchIntent("u1")
			intent.Priority = tc.priority
			intent.Category = tc.category

			built, err := BuildPayload(intent, models.PlatformAndroid)
			require.NoError(t, err)

			android, ok := built.(models.AndroidPayload)
			require.True(t, ok)
			assert.Equal(t, tc.channel, android.ChannelID)
			assert.Equal(t, tc.android, android.Priority)
			assert.Equal(t, tc.ttl, android.TTL)
			assert.Equal(t, intent.CollapseID, android.CollapseKey)
			assert.Equal(t, android.Data[DataKeyDeepLink], android.ClickAction)
		})
	}
}

func TestBuildPayloadLowPriorityIOS(t *testing.T) {
	t.Parallel()

	intent := dispatchIntent("u1")
	intent.Priority = models.PriorityLow
	intent.CollapseID = strings.Repeat("x", 100)

	built, err := BuildPayload(intent, models.PlatformIOS)
	require.NoError(t, err)

	apns := built.(models.APNSPayload)
	assert.Equal(t, 5, apns.Priority)
	assert.Equal(t, models.InterruptionPassive, apns.InterruptionLevel)
	assert.Empty(t, apns.Sound)
	assert.Len(t, apns.CollapseID, 64)
}

func TestBuildPayloadCollapsed(t *testing.T) {
	t.Parallel()

	intent := dispatchIntent("u1")
	intent.Category = models.CategoryNewListing
	intent.Priority = models.PriorityMedium
	intent.CollapseID = "group:new_listing"
	intent.EntityRef = "feed/new_listing"
	intent.EntityRefs = []string{"listing/3", "listing/2", "listing/1"}
	intent.TotalCount = 3

	for _, platform := range []models.Platform{models.PlatformIOS, models.PlatformAndroid} {
		built, err := BuildPayload(intent, platform)
		require.NoError(t, err)

		var data map[string]string
		switch p := built.(type) {
		case models.APNSPayload:
			data = p.Data
		case models.AndroidPayload:
			data = p.Data
		}
		assert.Equal(t, "foodshare://feed/new_listing", data[DataKeyDeepLink])
		assert.Equal(t, "listing/3,listing/2,listing/1", data[DataKeyEntityRefs])
		assert.Equal(t, "3", data[DataKeyTotalCount])
	}
}

func TestBuildPayloadUnknownPlatform(t *testing.T) {
	t.Parallel()

	_, err := BuildPayload(dispatchIntent("u1"), models.Platform("web"))
	assert.Error(t, err)
}

func TestLocalSchedulePayloadSharesData(t *testing.T) {
	t.Parallel()

	intent := dispatchIntent("u1")
	fireAt := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)

	local := LocalSchedulePayload(intent, fireAt)
	remote, err := BuildPayload(intent, models.PlatformIOS)
	require.NoError(t, err)

	assert.Equal(t, intent.CollapseID, local.Identifier)
	assert.Equal(t, fireAt, local.FireAt)
	assert.Equal(t, remote.(models.APNSPayload).Data, local.Data)
}

func TestTruncateBytesKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"short", "listing/1", 64, "listing/1"},
		{"ascii", strings.Repeat("a", 70), 64, strings.Repeat("a", 64)},
		{"two byte rune on the edge", strings.Repeat("a", 63) + "ü", 64, strings.Repeat("a", 63)},
		{"three byte rune on the edge", strings.Repeat("a", 62) + "€€", 64, strings.Repeat("a", 62)},
		{"rune ends at the limit", strings.Repeat("a", 62) + "ü" + "b", 64, strings.Repeat("a", 62) + "ü"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := truncateBytes(tc.input, tc.max)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, len(got), tc.max)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestBuildPayloadCollapseIDStaysValidUTF8(t *testing.T) {
	t.Parallel()

	intent := dispatchIntent("u1")
	intent.CollapseID = "new_message:" + strings.Repeat("é", 40)

	built, err := BuildPayload(intent, models.PlatformIOS)
	require.NoError(t, err)

	collapseID := built.(models.APNSPayload).CollapseID
	assert.LessOrEqual(t, len(collapseID), 64)
	assert.True(t, utf8.ValidString(collapseID))
}
