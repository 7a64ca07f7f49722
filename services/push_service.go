package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"foodshare-notify/interfaces"
	"foodshare-notify/models"
	"foodshare-notify/utils"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
)

// fcmSender is the part of *messaging.Client the gateway uses.
type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMGateway delivers Android payloads, and iOS payloads when APNs is not
// configured directly, through Firebase Cloud Messaging.
type FCMGateway struct {
	client fcmSender
}

func NewFCMGateway(client fcmSender) *FCMGateway {
	return &FCMGateway{client: client}
}

func (g *FCMGateway) Deliver(ctx context.Context, token models.DeviceToken, payload models.PlatformPayload) models.DeliveryOutcome {
	message, err := buildFCMMessage(token.Token, payload)
	if err != nil {
		return models.RejectedFailure("unsupported-payload", err)
	}

	messageID, err := g.client.Send(ctx, message)
	if err != nil {
		return classifyFCMError(err)
	}
	return models.Succeeded(messageID)
}

func buildFCMMessage(token string, payload models.PlatformPayload) (*messaging.Message, error) {
	switch p := payload.(type) {
	case models.AndroidPayload:
		ttl := p.TTL
		return &messaging.Message{
			Token: token,
			Data:  p.Data,
			Android: &messaging.AndroidConfig{
				CollapseKey: p.CollapseKey,
				Priority:    p.Priority,
				TTL:         &ttl,
				Notification: &messaging.AndroidNotification{
					Title:       p.Title,
					Body:        p.Body,
					ChannelID:   p.ChannelID,
					Tag:         p.Tag,
					ClickAction: p.ClickAction,
					Icon:        "ic_notification",
					Color:       "#2E7D32",
				},
			},
		}, nil

	case models.APNSPayload:
		headers := map[string]string{
			"apns-priority": strconv.Itoa(p.Priority),
		}
		if p.CollapseID != "" {
			headers["apns-collapse-id"] = p.CollapseID
		}
		if !p.Expiration.IsZero() {
			headers["apns-expiration"] = strconv.FormatInt(p.Expiration.Unix(), 10)
		}

		return &messaging.Message{
			Token: token,
			Data:  p.Data,
			APNS: &messaging.APNSConfig{
				Headers: headers,
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{
						Alert: &messaging.ApsAlert{
							Title: p.Title,
							Body:  p.Body,
						},
						Sound:    p.Sound,
						Category: p.Category,
						ThreadID: p.ThreadID,
						CustomData: map[string]interface{}{
							"interruption-level": string(p.InterruptionLevel),
							"relevance-score":    p.RelevanceScore,
						},
					},
				},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
}

func classifyFCMError(err error) models.DeliveryOutcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return retryableOutcome("timeout", err)
	case messaging.IsUnregistered(err):
		return invalidTokenOutcome("unregistered", err)
	case messaging.IsSenderIDMismatch(err):
		return invalidTokenOutcome("sender-id-mismatch", err)
	case messaging.IsInvalidArgument(err):
		// INVALID_ARGUMENT also covers oversized payloads and bad TTLs. Only
		// a complaint about the registration token condemns the token.
		if strings.Contains(strings.ToLower(err.Error()), "registration token") {
			return invalidTokenOutcome("invalid-registration-token", err)
		}
		return rejectedOutcome("invalid-argument", err)
	case messaging.IsQuotaExceeded(err):
		return retryableOutcome("quota-exceeded", err)
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return retryableOutcome("unavailable", err)
	case messaging.IsThirdPartyAuthError(err):
		return rejectedOutcome("third-party-auth", err)
	default:
		return retryableOutcome("unknown", err)
	}
}

func retryableOutcome(reason string, err error) models.DeliveryOutcome {
	return models.RetryableFailure(reason, utils.NewRetryableDeliveryError(reason, err))
}

func invalidTokenOutcome(reason string, err error) models.DeliveryOutcome {
	return models.InvalidTokenFailure(reason, utils.NewPermanentDeliveryError(reason, err))
}

func rejectedOutcome(reason string, err error) models.DeliveryOutcome {
	return models.RejectedFailure(reason, utils.NewPermanentDeliveryError(reason, err))
}

// GatewayRouter picks a gateway by payload platform.
type GatewayRouter struct {
	gateways map[models.Platform]interfaces.PushGateway
}

func NewGatewayRouter(ios, android interfaces.PushGateway) *GatewayRouter {
	gateways := make(map[models.Platform]interfaces.PushGateway)
	if ios != nil {
		gateways[models.PlatformIOS] = ios
	}
	if android != nil {
		gateways[models.PlatformAndroid] = android
	}
	return &GatewayRouter{gateways: gateways}
}

func (r *GatewayRouter) Deliver(ctx context.Context, token models.DeviceToken, payload models.PlatformPayload) models.DeliveryOutcome {
	gateway, ok := r.gateways[payload.Platform()]
	if !ok {
		return models.RejectedFailure("no-gateway",
			utils.NewConfigurationMissingError(fmt.Sprintf("push gateway for %s", payload.Platform())))
	}
	return gateway.Deliver(ctx, token, payload)
}

// LogGateway accepts every payload and only logs it. Used when no push
// credentials are configured.
type LogGateway struct{}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

func (g *LogGateway) Deliver(ctx context.Context, token models.DeviceToken, payload models.PlatformPayload) models.DeliveryOutcome {
	logrus.WithFields(logrus.Fields{
		"platform": payload.Platform(),
		"token":    utils.MaskToken(token.Token),
		"user_id":  token.UserID,
		"payload":  payload,
	}).Info("Push delivery skipped, no gateway configured")

	return models.Succeeded("log-" + strconv.FormatInt(time.Now().UnixNano(), 36))
}
