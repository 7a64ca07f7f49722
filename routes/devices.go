package routes

import (
	"foodshare-notify/controllers"

	"github.com/gin-gonic/gin"
)

func SetupDeviceRoutes(router *gin.RouterGroup, deviceController *controllers.DeviceController) {
	devices := router.Group("/devices")
	{
		devices.POST("", deviceController.RegisterDevice)
		devices.DELETE("/:token", deviceController.UnregisterDevice)
	}
}
