package bookings

import (
	"context"
	"time"

	"seatbook/pkg/logger"
)

// JobProcessor runs the recovery sweep in the background
type JobProcessor struct {
	service Service
	config  *JobConfig
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	SweepInterval time.Duration
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		SweepInterval: time.Minute,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, config *JobConfig) *JobProcessor {
	if config == nil || config.SweepInterval <= 0 {
		config = DefaultJobConfig()
	}
	return &JobProcessor{
		service: service,
		config:  config,
	}
}

// Run sweeps on every tick until ctx is cancelled
func (jp *JobProcessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(jp.config.SweepInterval)
	defer ticker.Stop()

	logger.GetDefault().Info("Started booking recovery sweep", "interval", jp.config.SweepInterval.String())

	for {
		select {
		case <-ticker.C:
			jp.Sweep(ctx)
		case <-ctx.Done():
			logger.GetDefault().Info("Stopped booking recovery sweep")
			return nil
		}
	}
}

// Sweep runs one recovery pass: abandoned bookings, lapsed reservations, failed refunds
func (jp *JobProcessor) Sweep(ctx context.Context) {
	recovered, err := jp.service.RecoverStaleBookings(ctx)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "Error recovering stale bookings", err, nil)
	} else if recovered > 0 {
		logger.GetDefault().InfoWithContext(ctx, "Recovered stale bookings", map[string]interface{}{"count": recovered})
	}

	reset, err := jp.service.ResetLapsedReservations(ctx)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "Error resetting lapsed reservations", err, nil)
	} else if reset > 0 {
		logger.GetDefault().InfoWithContext(ctx, "Reset lapsed reservations", map[string]interface{}{"count": reset})
	}

	refunded, err := jp.service.RetryRefunds(ctx)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "Error retrying refunds", err, nil)
	} else if refunded > 0 {
		logger.GetDefault().InfoWithContext(ctx, "Retried refunds", map[string]interface{}{"count": refunded})
	}
}
