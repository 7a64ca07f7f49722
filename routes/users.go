package routes

import (
	"foodshare-notify/controllers"

	"github.com/gin-gonic/gin"
)

func SetupUserRoutes(router *gin.RouterGroup, preferenceController *controllers.PreferenceController, locationController *controllers.LocationController) {
	users := router.Group("/users/:userId")
	{
		users.GET("/preferences", preferenceController.GetPreferences)
		users.PUT("/preferences", preferenceController.UpdatePreferences)
		users.PUT("/location", locationController.UpdateLocation)
	}
}
