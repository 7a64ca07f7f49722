package routes

import (
	"foodshare-notify/controllers"

	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, eventController *controllers.EventController, entityController *controllers.EntityController) {
	router.POST("/events", eventController.IngestEvent)

	entities := router.Group("/entities")
	{
		entities.POST("/:type/:id/invalidate", entityController.InvalidateEntity)
	}
}
