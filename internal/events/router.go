package events

import (
	"seatbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, controller Controller, jwtSecret string) {
	// Public routes - anyone can view event details
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("/:id", controller.GetEvent) // GET /api/v1/events/:id
	}

	// Event setup - any authenticated caller; roles are managed outside this service
	manageEvents := router.Group("/events")
	manageEvents.Use(middleware.JWTAuth(jwtSecret))
	{
		manageEvents.POST("", controller.CreateEvent)                  // POST /api/v1/events
		manageEvents.PATCH("/:id/status", controller.UpdateEventStatus) // PATCH /api/v1/events/:id/status
	}
}
