package controllers

import (
	"context"
	"net/http"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type deviceStore interface {
	Register(ctx context.Context, device *models.DeviceToken) error
	Unregister(ctx context.Context, token string) error
}

type DeviceController struct {
	devices   deviceStore
	validator *utils.ValidationService
}

func NewDeviceController(devices deviceStore) *DeviceController {
	return &DeviceController{
		devices:   devices,
		validator: utils.NewValidationService(),
	}
}

// RegisterDevice binds a push token to a user
// @Summary Register device token
// @Tags Devices
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.RegisterDeviceRequest true "Device token"
// @Success 201 {object} models.APIResponse{data=models.DeviceToken}
// @Failure 400 {object} models.APIResponse
// @Router /devices [post]
func (dc *DeviceController) RegisterDevice(c *gin.Context) {
	var req models.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if errs := dc.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	device := &models.DeviceToken{
		Token:    req.Token,
		UserID:   req.UserID,
		Platform: req.Platform,
	}

	if err := dc.devices.Register(c.Request.Context(), device); err != nil {
		logrus.WithField("user_id", req.UserID).Errorf("Register device failed: %v", err)
		utils.InternalServerErrorResponse(c, "Failed to register device")
		return
	}

	utils.CreatedResponse(c, "Device registered", device)
}

// UnregisterDevice removes a push token
// @Summary Unregister device token
// @Tags Devices
// @Security BearerAuth
// @Param token path string true "Device token"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /devices/{token} [delete]
func (dc *DeviceController) UnregisterDevice(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		utils.BadRequestResponse(c, "Device token is required")
		return
	}

	err := dc.devices.Unregister(c.Request.Context(), token)
	if err != nil {
		if serviceErr, ok := utils.GetServiceError(err); ok && serviceErr.StatusCode == http.StatusNotFound {
			utils.NotFoundResponse(c, "Device token")
			return
		}
		logrus.Errorf("Unregister device %s failed: %v", utils.MaskToken(token), err)
		utils.InternalServerErrorResponse(c, "Failed to unregister device")
		return
	}

	utils.SuccessResponse(c, "Device unregistered", nil)
}
