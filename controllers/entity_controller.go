package controllers

import (
	"foodshare-notify/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type entityInvalidator interface {
	InvalidateEntity(entityRef string) int
}

type EntityController struct {
	invalidator entityInvalidator
}

func NewEntityController(invalidator entityInvalidator) *EntityController {
	return &EntityController{
		invalidator: invalidator,
	}
}

// InvalidateEntity cancels pending retries for a claimed or deleted listing
// or a superseded reservation.
func (ec *EntityController) InvalidateEntity(c *gin.Context) {
	entityType := c.Param("type")
	entityID := c.Param("id")
	if entityType == "" || entityID == "" {
		utils.BadRequestResponse(c, "Entity type and id are required")
		return
	}

	entityRef := entityType + "/" + entityID
	cancelled := ec.invalidator.InvalidateEntity(entityRef)

	logrus.WithFields(logrus.Fields{
		"entity_ref":   entityRef,
		"cancelled":    cancelled,
		"event_source": utils.GetEventSource(c),
	}).Info("Entity invalidated")

	utils.SuccessResponse(c, "Entity invalidated", gin.H{
		"entityRef": entityRef,
		"cancelled": cancelled,
	})
}
