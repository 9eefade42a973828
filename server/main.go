package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatbook/api/routes"
	"seatbook/internal/bookings"
	"seatbook/internal/events"
	"seatbook/internal/notifications"
	"seatbook/internal/payments"
	"seatbook/internal/seats"
	"seatbook/internal/shared/config"
	"seatbook/internal/shared/database"
	"seatbook/internal/shared/middleware"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"
	"seatbook/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		logger.GetDefault().Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	appLogger := logger.GetDefault()

	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gin.SetMode(cfg.GinMode)

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db.Postgres,
		&events.Event{},
		&seats.Seat{},
		&bookings.Booking{},
		&bookings.BookingSeat{},
		&payments.Payment{},
		&payments.CardOrder{},
		&payments.Wallet{},
		&payments.WalletTransaction{},
	); err != nil {
		return err
	}

	notifier, err := notifications.New(cfg.Notifications)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			appLogger.Error("Error closing notifier", slog.Any("error", err))
		}
	}()

	clk := clock.NewSystem()
	appRouter := routes.NewRouter(cfg, db, notifier, clk)

	scriptCtx, cancelScripts := context.WithTimeout(context.Background(), 10*time.Second)
	if err := appRouter.Ledger.PreloadScripts(scriptCtx); err != nil {
		// Script.Run falls back to EVAL on NOSCRIPT
		appLogger.Warn("Failed to preload ledger scripts", slog.Any("error", err))
	} else {
		appLogger.Info("Ledger scripts preloaded")
	}
	cancelScripts()

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			PublicRequests:  cfg.RateLimit.PublicRequests,
			HoldRequests:    cfg.RateLimit.HoldRequests,
			BookingRequests: cfg.RateLimit.BookingRequests,
			HealthRequests:  cfg.RateLimit.HealthRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
		}, clk)
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("booking_requests", cfg.RateLimit.BookingRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        setupEngine(cfg, appRouter, rateLimiter),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	jobs := bookings.NewJobProcessor(appRouter.Bookings, &bookings.JobConfig{
		SweepInterval: cfg.Booking.SweepInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.String("notifier", cfg.Notifications.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return jobs.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	appLogger.Info("Server exited gracefully")
	return nil
}

func setupEngine(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()

	engine.Use(middleware.RequestLogger(), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter.SetupRoutes(engine)
	return engine
}
