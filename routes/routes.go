package routes

import (
	"foodshare-notify/controllers"
	"foodshare-notify/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Controllers groups every HTTP controller the router mounts
type Controllers struct {
	Event      *controllers.EventController
	Device     *controllers.DeviceController
	Preference *controllers.PreferenceController
	Location   *controllers.LocationController
	Entity     *controllers.EntityController
	Health     *controllers.HealthController
}

type Middleware struct {
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
}

// SetupRoutes initializes all application routes
func SetupRoutes(environment string, ctrls *Controllers, mw *Middleware, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()

	setupGlobalMiddleware(router, environment)
	setupPublicRoutes(router, ctrls, gatherer)
	setupAuthenticatedRoutes(router, ctrls, mw)

	return router
}

func setupGlobalMiddleware(router *gin.Engine, environment string) {
	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(middleware.NewErrorHandler(environment, logrus.StandardLogger()).Handle())
}

// Public routes (no authentication required)
func setupPublicRoutes(router *gin.Engine, ctrls *Controllers, gatherer prometheus.Gatherer) {
	router.GET("/health", ctrls.Health.Health)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// Authenticated routes (requires a valid event source token)
func setupAuthenticatedRoutes(router *gin.Engine, ctrls *Controllers, mw *Middleware) {
	api := router.Group("/api/v1")
	api.Use(mw.Auth.RequireEventSource())
	if mw.RateLimiter != nil {
		api.Use(mw.RateLimiter.Middleware())
	}

	SetupEventRoutes(api, ctrls.Event, ctrls.Entity)
	SetupDeviceRoutes(api, ctrls.Device)
	SetupUserRoutes(api, ctrls.Preference, ctrls.Location)

	api.GET("/stats", ctrls.Health.Stats)
}
