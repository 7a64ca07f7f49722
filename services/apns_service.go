package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"foodshare-notify/models"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// apnsPusher is the subset of *apns2.Client the gateway uses.
type apnsPusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNSGateway delivers iOS payloads straight to Apple over HTTP/2 using
// token based auth.
type APNSGateway struct {
	client apnsPusher
	topic  string
}

func NewAPNSGateway(keyPath, keyID, teamID, bundleID string, production bool) (*APNSGateway, error) {
	authKey, err := token.AuthKeyFromFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return newAPNSGateway(client, bundleID), nil
}

func newAPNSGateway(client apnsPusher, topic string) *APNSGateway {
	return &APNSGateway{client: client, topic: topic}
}

func (g *APNSGateway) Deliver(ctx context.Context, deviceToken models.DeviceToken, platformPayload models.PlatformPayload) models.DeliveryOutcome {
	p, ok := platformPayload.(models.APNSPayload)
	if !ok {
		return models.RejectedFailure("unsupported-payload", fmt.Errorf("apns gateway cannot send %T", platformPayload))
	}

	notification := &apns2.Notification{
		DeviceToken: deviceToken.Token,
		Topic:       g.topic,
		CollapseID:  p.CollapseID,
		Priority:    p.Priority,
		Expiration:  p.Expiration,
		PushType:    apns2.PushTypeAlert,
		Payload:     buildAPNSPayload(p),
	}

	res, err := g.client.PushWithContext(ctx, notification)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return retryableOutcome("timeout", err)
		}
		return retryableOutcome("transport", err)
	}

	return classifyAPNSResponse(res)
}

func buildAPNSPayload(p models.APNSPayload) *payload.Payload {
	builder := payload.NewPayload().
		AlertTitle(p.Title).
		AlertBody(p.Body).
		Category(p.Category).
		ThreadID(p.ThreadID).
		InterruptionLevel(apnsInterruptionLevel(p.InterruptionLevel))

	if p.Sound != "" {
		builder.Sound(p.Sound)
	}
	for k, v := range p.Data {
		builder.Custom(k, v)
	}
	return builder
}

func apnsInterruptionLevel(level models.InterruptionLevel) payload.EInterruptionLevel {
	switch level {
	case models.InterruptionTimeSensitive:
		return payload.InterruptionLevelTimeSensitive
	case models.InterruptionPassive:
		return payload.InterruptionLevelPassive
	default:
		return payload.InterruptionLevelActive
	}
}

func classifyAPNSResponse(res *apns2.Response) models.DeliveryOutcome {
	if res.Sent() {
		return models.Succeeded(res.ApnsID)
	}

	err := fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	switch {
	case res.Reason == apns2.ReasonBadDeviceToken,
		res.Reason == apns2.ReasonUnregistered,
		res.Reason == apns2.ReasonDeviceTokenNotForTopic,
		res.StatusCode == http.StatusGone:
		return invalidTokenOutcome(res.Reason, err)
	case res.StatusCode == http.StatusTooManyRequests,
		res.StatusCode >= http.StatusInternalServerError:
		return retryableOutcome(res.Reason, err)
	default:
		return rejectedOutcome(res.Reason, err)
	}
}
