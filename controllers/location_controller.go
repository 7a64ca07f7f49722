package controllers

import (
	"context"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/gin-gonic/gin"
)

type locationUpdater interface {
	UpdateLocation(ctx context.Context, userID string, point models.GeoPoint) error
}

type LocationController struct {
	geofence  locationUpdater
	validator *utils.ValidationService
}

func NewLocationController(geofence locationUpdater) *LocationController {
	return &LocationController{
		geofence:  geofence,
		validator: utils.NewValidationService(),
	}
}

// UpdateLocation moves the user's point in the geofence index
func (lc *LocationController) UpdateLocation(c *gin.Context) {
	userID := c.Param("userId")

	var req models.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if errs := lc.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	point := models.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := lc.geofence.UpdateLocation(c.Request.Context(), userID, point); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated", point)
}
