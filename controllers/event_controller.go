package controllers

import (
	"time"

	"foodshare-notify/interfaces"
	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type EventController struct {
	handler interfaces.EventHandler
}

func NewEventController(handler interfaces.EventHandler) *EventController {
	return &EventController{
		handler: handler,
	}
}

// IngestEvent runs one domain event through the notification pipeline
// @Summary Ingest domain event
// @Description Webhook used by the database trigger. Responds 503 when recipients cannot be resolved so the source retries.
// @Tags Events
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.DomainEvent true "Domain event"
// @Success 200 {object} models.APIResponse{data=models.ProcessingResult}
// @Failure 400 {object} models.APIResponse
// @Failure 401 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /events [post]
func (ec *EventController) IngestEvent(c *gin.Context) {
	var event models.DomainEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		utils.BadRequestResponse(c, "Invalid event body")
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	result, err := ec.handler.HandleEvent(c.Request.Context(), event)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"event_id":     event.ID,
			"category":     event.Category,
			"event_source": utils.GetEventSource(c),
		}).Warnf("Event ingest failed: %v", err)
		utils.HandleServiceError(c, err)
		return
	}

	if result.Duplicate {
		utils.SuccessResponse(c, "Event already processed", result)
		return
	}

	utils.SuccessResponse(c, "Event processed", result)
}
