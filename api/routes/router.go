// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"seatbook/internal/bookings"
	"seatbook/internal/events"
	"seatbook/internal/notifications"
	"seatbook/internal/payments"
	"seatbook/internal/reservations"
	"seatbook/internal/seats"
	"seatbook/internal/shared/config"
	"seatbook/internal/shared/database"
	"seatbook/pkg/cache"
	"seatbook/pkg/clock"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.Connections

	Ledger   *reservations.RedisLedger
	Holds    reservations.Service
	Events   events.Service
	Payments payments.Service
	Bookings bookings.Service
}

// NewRouter wires the services shared by the HTTP routes and the background jobs
func NewRouter(cfg *config.Config, db *database.Connections, notifier notifications.Notifier, clk clock.Clock) *Router {
	pg := db.Postgres
	tx := database.NewTransactor(pg)
	seatRepo := seats.NewRepository(pg)

	eventService := events.NewService(
		events.NewRepository(pg),
		seatRepo,
		cache.NewService(db.Redis),
		tx,
		clk,
	)

	ledger := reservations.NewRedisLedger(db.Redis)
	holdService := reservations.NewService(ledger, seatRepo, eventService, clk,
		reservations.WithHoldTTL(cfg.Redis.SeatHoldTTL),
		reservations.WithMaxSeats(cfg.Booking.MaxSeats),
		reservations.WithImplicitHold(cfg.Booking.ImplicitHold),
	)

	paymentService := payments.NewService(
		payments.NewRepository(pg),
		payments.NewWalletRepository(pg),
		payments.NewHTTPGateway(cfg.Gateway),
		tx,
		clk,
	)

	bookingService := bookings.NewService(
		bookings.NewRepository(pg),
		holdService,
		seatRepo,
		paymentService,
		notifier,
		tx,
		clk,
		cfg.Booking,
	)
	holdService.SetReconciler(bookingService)

	return &Router{
		config:   cfg,
		db:       db,
		Ledger:   ledger,
		Holds:    holdService,
		Events:   eventService,
		Payments: paymentService,
		Bookings: bookingService,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		events.SetupEventRoutes(api, events.NewController(r.Events), r.config.JWT.Secret)
		reservations.SetupHoldRoutes(api, reservations.NewController(r.Holds), r.config.JWT.Secret)
		bookings.SetupBookingRoutes(api, bookings.NewController(r.Bookings), r.config.JWT.Secret)
		payments.SetupWalletRoutes(api, payments.NewWalletController(r.Payments, r.config.Booking.Currency), r.config.JWT.Secret)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "seatbook",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "seatbook",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}
