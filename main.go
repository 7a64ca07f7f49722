package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodshare-notify/config"
	"foodshare-notify/controllers"
	"foodshare-notify/database"
	"foodshare-notify/middleware"
	"foodshare-notify/models"
	"foodshare-notify/repositories"
	"foodshare-notify/routes"
	"foodshare-notify/services"
	"foodshare-notify/utils"
	"foodshare-notify/workers"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const developmentSourceSecret = "foodshare-notify-development-secret"

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	cfg := config.Load()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	setupLogger(cfg)

	if cfg.EventSourceSecret == "" {
		if cfg.IsProduction() {
			logrus.Fatal("EVENT_SOURCE_SECRET must be set in production")
		}
		logrus.Warn("EVENT_SOURCE_SECRET not set, using development secret")
		cfg.EventSourceSecret = developmentSourceSecret
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}

	redisClient := config.InitRedis(cfg)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := services.NewMetrics(registry)

	// Repositories
	deviceRepo := repositories.NewDeviceRepository(db)
	preferenceRepo := repositories.NewPreferenceRepository(db)
	geofenceRepo := repositories.NewGeofenceRepository(redisClient)

	// Pipeline
	gateway := config.InitializePushGateway(context.Background(), cfg, metrics)
	retries := services.NewRetryScheduler(cfg.RetryBackoff, cfg.DeliveryMaxAttempts, metrics)
	dispatcher := services.NewDispatcher(deviceRepo, gateway, retries, metrics, cfg.GatewayTimeout)

	dispatchWorker := workers.NewDispatchWorker(dispatcher, workers.DispatchWorkerConfig{
		WorkerCount: cfg.DispatchWorkers,
		QueueSize:   cfg.DispatchQueueSize,
	})

	aggregator := services.NewGroupingAggregator(services.GroupingConfig{
		Window:            cfg.GroupWindow,
		CollapseThreshold: cfg.GroupCollapseThreshold,
		FlushSize:         cfg.GroupFlushSize,
	}, dispatchWorker.Submit, metrics)

	defaultPriority, ok := models.ParsePriority(cfg.DefaultPriority)
	if !ok {
		logrus.Warnf("Invalid DEFAULT_PRIORITY %q, using medium", cfg.DefaultPriority)
		defaultPriority = models.PriorityMedium
	}

	preferenceService := services.NewPreferenceService(preferenceRepo, geofenceRepo, cfg.PreferenceCacheTTL)
	geofenceService := services.NewGeofenceService(geofenceRepo)

	notificationService := services.NewNotificationService(
		preferenceService,
		deviceRepo,
		geofenceService,
		services.NewEligibilityFilter(defaultPriority),
		aggregator,
		dispatcher,
		retries,
		metrics,
		services.NotificationServiceConfig{
			SearchRadiusKm:    cfg.NearbySearchRadiusKm,
			GeofenceTimeout:   cfg.GeofenceTimeout,
			FanoutConcurrency: cfg.FanoutConcurrency,
			DedupeTTL:         cfg.EventDedupeTTL,
		},
	)

	// Workers
	cleanupWorker := workers.NewCleanupWorker(deviceRepo, workers.CleanupWorkerConfig{
		TokenStaleDays: cfg.TokenStaleDays,
		Interval:       cfg.CleanupInterval,
	})

	if err := dispatchWorker.Start(); err != nil {
		logrus.Fatal("Failed to start dispatch worker: ", err)
	}
	if err := cleanupWorker.Start(); err != nil {
		logrus.Fatal("Failed to start cleanup worker: ", err)
	}

	var consumer *workers.EventConsumer
	if len(cfg.KafkaBrokers) > 0 {
		consumer = workers.NewEventConsumer(notificationService, workers.EventConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		})
		if err := consumer.Start(context.Background()); err != nil {
			logrus.Fatal("Failed to start event consumer: ", err)
		}
	} else {
		logrus.Info("KAFKA_BROKERS not set, events are accepted over HTTP only")
	}

	// HTTP
	jwtService := utils.NewJWTService(cfg.EventSourceSecret)
	if !cfg.IsProduction() {
		if token, err := jwtService.GenerateSourceToken("development"); err == nil {
			logrus.Debugf("Development event source token: %s", token)
		}
	}

	statsProvider := func() models.StatsResponse {
		stats := models.StatsResponse{
			Dispatch: dispatchWorker.GetStats(),
			Retries:  notificationService.RetryStats(),
			Grouping: notificationService.GroupingStats(),
			Cleanup:  cleanupWorker.GetStats(),
		}
		if consumer != nil {
			stats.Consumer = consumer.GetStats()
		}
		return stats
	}

	healthChecks := map[string]controllers.HealthCheck{
		"mongodb": database.Ping,
		"redis":   geofenceRepo.Ping,
	}

	router := routes.SetupRoutes(cfg.Environment, &routes.Controllers{
		Event:      controllers.NewEventController(notificationService),
		Device:     controllers.NewDeviceController(deviceRepo),
		Preference: controllers.NewPreferenceController(preferenceService),
		Location:   controllers.NewLocationController(geofenceService),
		Entity:     controllers.NewEntityController(notificationService),
		Health:     controllers.NewHealthController(healthChecks, statsProvider),
	}, &routes.Middleware{
		Auth: middleware.NewAuthMiddleware(jwtService),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			Redis:    redisClient,
			Requests: cfg.RateLimitRequests,
			Window:   cfg.RateLimitWindow,
		}),
	}, registry)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logrus.Infof("Notification service starting on port %s", cfg.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result *multierror.Error

	if err := server.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	// Buffered groups go out before the workers drain.
	aggregator.FlushAll()
	if err := dispatchWorker.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	retries.Stop()
	if err := cleanupWorker.Stop(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := redisClient.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := database.Disconnect(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		logrus.Errorf("Shutdown finished with errors: %v", err)
		os.Exit(1)
	}

	logrus.Info("Server shutdown complete")
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
