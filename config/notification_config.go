package config

import (
	"context"
	"fmt"

	"foodshare-notify/interfaces"
	"foodshare-notify/services"

	firebase "firebase.google.com/go/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// InitializePushGateway builds the platform router used by the dispatcher.
// FCM serves Android and, unless APNs credentials are configured, iOS as
// well. Without any credentials every delivery is logged instead of sent.
func InitializePushGateway(ctx context.Context, cfg *Config, metrics *services.Metrics) interfaces.PushGateway {
	var android, ios interfaces.PushGateway

	fcm, err := initializeFCM(ctx, cfg)
	if err != nil {
		logrus.Errorf("Failed to initialize Firebase messaging: %v", err)
	} else if fcm != nil {
		android = fcm
		ios = fcm
		logrus.Info("FCM push gateway initialized")
	}

	if cfg.APNSKeyPath != "" {
		apns, err := services.NewAPNSGateway(cfg.APNSKeyPath, cfg.APNSKeyID, cfg.APNSTeamID, cfg.APNSBundleID, cfg.APNSProduction)
		if err != nil {
			logrus.Errorf("Failed to initialize APNs gateway: %v", err)
		} else {
			ios = apns
			logrus.WithField("production", cfg.APNSProduction).Info("APNs push gateway initialized")
		}
	}

	if ios == nil && android == nil {
		if cfg.IsProduction() {
			logrus.Warn("No push credentials configured, deliveries will only be logged")
		}
		fallback := services.NewLogGateway()
		ios, android = fallback, fallback
	}

	return services.NewInstrumentedGateway(services.NewGatewayRouter(ios, android), metrics)
}

// initializeFCM returns nil without error when Firebase is not configured
func initializeFCM(ctx context.Context, cfg *Config) (*services.FCMGateway, error) {
	if cfg.FirebaseCredentialsPath == "" && cfg.FirebaseProjectID == "" {
		return nil, nil
	}

	var fbConfig *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	var opts []option.ClientOption
	if cfg.FirebaseCredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsPath))
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get FCM client: %w", err)
	}

	return services.NewFCMGateway(client), nil
}
