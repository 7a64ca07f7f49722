package controllers

import (
	"context"
	"net/http"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/gin-gonic/gin"
)

const serviceVersion = "1.0.0"

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// StatsProvider collects worker and pipeline statistics
type StatsProvider func() models.StatsResponse

type HealthController struct {
	checks    map[string]HealthCheck
	stats     StatsProvider
	startTime time.Time
}

func NewHealthController(checks map[string]HealthCheck, stats StatsProvider) *HealthController {
	return &HealthController{
		checks:    checks,
		stats:     stats,
		startTime: time.Now(),
	}
}

func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	statuses := make(map[string]string, len(hc.checks))
	healthy := true
	for name, check := range hc.checks {
		if err := check(ctx); err != nil {
			statuses[name] = "unhealthy"
			healthy = false
			continue
		}
		statuses[name] = "healthy"
	}

	response := utils.HealthCheckResponse(statuses, serviceVersion, utils.FormatDuration(time.Since(hc.startTime)))
	if !healthy {
		response.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (hc *HealthController) Stats(c *gin.Context) {
	if hc.stats == nil {
		utils.SuccessResponse(c, "Statistics retrieved", models.StatsResponse{})
		return
	}
	utils.SuccessResponse(c, "Statistics retrieved", hc.stats())
}
