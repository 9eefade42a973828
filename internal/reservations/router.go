package reservations

import (
	"seatbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupHoldRoutes(rg *gin.RouterGroup, controller *Controller, jwtSecret string) {
	holds := rg.Group("/holds")
	holds.Use(middleware.JWTAuth(jwtSecret))
	{
		holds.POST("", controller.HoldSeats)      // POST /api/v1/holds
		holds.DELETE("", controller.ReleaseSeats) // DELETE /api/v1/holds
		holds.GET("", controller.GetHolds)        // GET /api/v1/holds
	}

	events := rg.Group("/events")
	events.Use(middleware.OptionalAuth(jwtSecret))
	{
		events.GET("/:id/seats", controller.GetSeatMap) // GET /api/v1/events/:id/seats
	}
}
