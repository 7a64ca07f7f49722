package models

import (
	"time"
)

// PlatformPayload is the tagged variant produced for one device platform.
type PlatformPayload interface {
	Platform() Platform
}

type APNSPayload struct {
	Title             string            `json:"title"`
	Body              string            `json:"body"`
	Category          string            `json:"category"`
	ThreadID          string            `json:"threadId"`
	CollapseID        string            `json:"collapseId"`
	Priority          int               `json:"priority"` // apns-priority, 10 or 5
	InterruptionLevel InterruptionLevel `json:"interruptionLevel"`
	RelevanceScore    float64           `json:"relevanceScore"`
	Sound             string            `json:"sound,omitempty"`
	Expiration        time.Time         `json:"expiration,omitempty"`
	Data              map[string]string `json:"data"`
}

func (APNSPayload) Platform() Platform { return PlatformIOS }

type AndroidPayload struct {
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	ChannelID   string            `json:"channelId"`
	Priority    string            `json:"priority"` // "high" or "normal"
	CollapseKey string            `json:"collapseKey"`
	Tag         string            `json:"tag"`
	ClickAction string            `json:"clickAction"`
	TTL         time.Duration     `json:"ttl"`
	Data        map[string]string `json:"data"`
}

func (AndroidPayload) Platform() Platform { return PlatformAndroid }

// LocalNotification is the shape handed to the app for on-device scheduling.
// Its Data map matches the remote payloads key for key.
type LocalNotification struct {
	Identifier        string            `json:"identifier"`
	Title             string            `json:"title"`
	Body              string            `json:"body"`
	FireAt            time.Time         `json:"fireAt"`
	ThreadID          string            `json:"threadId"`
	InterruptionLevel InterruptionLevel `json:"interruptionLevel"`
	Data              map[string]string `json:"data"`
}
