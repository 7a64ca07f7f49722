package controllers

import (
	"context"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/gin-gonic/gin"
)

type preferenceManager interface {
	GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (*models.NotificationPreferences, error)
}

type PreferenceController struct {
	preferences preferenceManager
	validator   *utils.ValidationService
}

func NewPreferenceController(preferences preferenceManager) *PreferenceController {
	return &PreferenceController{
		preferences: preferences,
		validator:   utils.NewValidationService(),
	}
}

// GetPreferences returns the stored preferences, or the defaults when the
// user never saved any.
func (pc *PreferenceController) GetPreferences(c *gin.Context) {
	userID := c.Param("userId")

	prefs, err := pc.preferences.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Preferences retrieved", prefs)
}

func (pc *PreferenceController) UpdatePreferences(c *gin.Context) {
	userID := c.Param("userId")

	var req models.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if errs := pc.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	prefs, err := pc.preferences.UpdatePreferences(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Preferences updated", prefs)
}
