package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"foodshare-notify/models"
)

const (
	DeepLinkScheme = "foodshare://"

	// apns-collapse-id is limited to 64 bytes
	maxAPNSCollapseIDLength = 64
)

// Payload data keys shared by remote and local notifications.
const (
	DataKeyCategory          = "category"
	DataKeyEntityRef         = "entityRef"
	DataKeyCollapseID        = "collapseId"
	DataKeyPriority          = "priority"
	DataKeyInterruptionLevel = "interruptionLevel"
	DataKeyDeepLink          = "deepLink"
	DataKeyEntityRefs        = "entityRefs"
	DataKeyTotalCount        = "totalCount"
)

var androidChannels = map[models.EventCategory]string{
	models.CategoryNewMessage:          "messages",
	models.CategoryReservationAccepted: "reservations",
	models.CategoryReservationUpdated:  "reservations",
	models.CategoryNewListing:          "nearby_listings",
	models.CategoryListingExpiring:     "nearby_listings",
	models.CategoryWeeklySummary:       "digest",
	models.CategoryTips:                "digest",
}

// BuildPayload returns the platform variant for intent. It is deterministic:
// expiry is derived from the intent's creation time.
func BuildPayload(intent models.NotificationIntent, platform models.Platform) (models.PlatformPayload, error) {
	data := payloadData(intent)
	level := intent.Priority.InterruptionLevel()
	ttl := payloadTTL(intent.Priority)

	switch platform {
	case models.PlatformIOS:
		apnsPriority := 10
		if intent.Priority == models.PriorityLow {
			apnsPriority = 5
		}
		return models.APNSPayload{
			Title:             intent.Title,
			Body:              intent.Body,
			Category:          string(intent.Category),
			ThreadID:          intent.GroupingKey,
			CollapseID:        truncateBytes(intent.CollapseID, maxAPNSCollapseIDLength),
			Priority:          apnsPriority,
			InterruptionLevel: level,
			RelevanceScore:    relevanceScore(intent.Priority),
			Sound:             soundFor(intent.Priority),
			Expiration:        intent.CreatedAt.Add(ttl),
			Data:              data,
		}, nil

	case models.PlatformAndroid:
		androidPriority := "normal"
		if intent.Priority == models.PriorityHigh {
			androidPriority = "high"
		}
		return models.AndroidPayload{
			Title:       intent.Title,
			Body:        intent.Body,
			ChannelID:   channelFor(intent.Category),
			Priority:    androidPriority,
			CollapseKey: intent.CollapseID,
			Tag:         intent.GroupingKey,
			ClickAction: data[DataKeyDeepLink],
			TTL:         ttl,
			Data:        data,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

// LocalSchedulePayload builds the on-device reminder shape for intent. The
// data map is the one every remote payload carries.
func LocalSchedulePayload(intent models.NotificationIntent, fireAt time.Time) models.LocalNotification {
	return models.LocalNotification{
		Identifier:        intent.CollapseID,
		Title:             intent.Title,
		Body:              intent.Body,
		FireAt:            fireAt,
		ThreadID:          intent.GroupingKey,
		InterruptionLevel: intent.Priority.InterruptionLevel(),
		Data:              payloadData(intent),
	}
}

func payloadData(intent models.NotificationIntent) map[string]string {
	data := map[string]string{
		DataKeyCategory:          string(intent.Category),
		DataKeyEntityRef:         intent.EntityRef,
		DataKeyCollapseID:        intent.CollapseID,
		DataKeyPriority:          string(intent.Priority),
		DataKeyInterruptionLevel: string(intent.Priority.InterruptionLevel()),
		DataKeyDeepLink:          deepLink(intent),
	}
	if intent.IsCollapsed() {
		data[DataKeyEntityRefs] = strings.Join(intent.EntityRefs, ",")
		data[DataKeyTotalCount] = strconv.Itoa(intent.TotalCount)
	}
	return data
}

// Collapsed intents open the category feed instead of a single entity.
func deepLink(intent models.NotificationIntent) string {
	if intent.IsCollapsed() {
		return DeepLinkScheme + "feed/" + string(intent.Category)
	}
	return DeepLinkScheme + intent.EntityRef
}

func payloadTTL(priority models.Priority) time.Duration {
	switch priority {
	case models.PriorityHigh:
		return 24 * time.Hour
	case models.PriorityLow:
		return 72 * time.Hour
	default:
		return 12 * time.Hour
	}
}

func relevanceScore(priority models.Priority) float64 {
	switch priority {
	case models.PriorityHigh:
		return 1.0
	case models.PriorityLow:
		return 0.1
	default:
		return 0.5
	}
}

func soundFor(priority models.Priority) string {
	if priority == models.PriorityLow {
		return ""
	}
	return "default"
}

func channelFor(category models.EventCategory) string {
	if channel, ok := androidChannels[category]; ok {
		return channel
	}
	return "general"
}

// truncateBytes cuts s to at most max bytes without splitting a rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
