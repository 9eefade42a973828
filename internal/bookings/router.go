package bookings

import (
	"seatbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, jwtSecret string) {
	bookings := rg.Group("/bookings")
	bookings.Use(middleware.JWTAuth(jwtSecret))
	{
		bookings.POST("", controller.CreateBooking)                // POST /api/v1/bookings
		bookings.POST("/card-orders", controller.CreateCardOrder)  // POST /api/v1/bookings/card-orders
		bookings.GET("/:id", controller.GetBooking)                // GET /api/v1/bookings/:id
		bookings.POST("/:id/cancel", controller.CancelBooking)     // POST /api/v1/bookings/:id/cancel
	}

	users := rg.Group("/users")
	users.Use(middleware.JWTAuth(jwtSecret))
	{
		users.GET("/bookings", controller.GetUserBookings) // GET /api/v1/users/bookings?page=1&limit=10
	}
}

// Booking flow:
// 1. POST /holds with the seats
// 2. (card) POST /bookings/card-orders, pay at the gateway
// 3. POST /bookings with payment_method WALLET, or CARD plus order_id, payment_id, signature
// 4. GET /bookings/:id to follow the booking; POST /bookings/:id/cancel to cancel it
