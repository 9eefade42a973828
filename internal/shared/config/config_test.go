package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.Redis.SeatHoldTTL)
	assert.Equal(t, 30*time.Second, cfg.Booking.PaymentTimeout)
	assert.Equal(t, cfg.Redis.SeatHoldTTL+cfg.Booking.PaymentTimeout, cfg.Booking.RecoveryGrace)
	assert.True(t, cfg.Booking.ImplicitHold)
	assert.Equal(t, "USD", cfg.Booking.Currency)
	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("REDIS_SEAT_HOLD_TTL", "300")
	t.Setenv("PAYMENT_TIMEOUT", "5s")
	t.Setenv("BOOKING_IMPLICIT_HOLD", "false")
	t.Setenv("BOOKING_CURRENCY", "inr")
	t.Setenv("NOTIFIER_BACKEND", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_LIMIT_BOOKING_REQUESTS", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.Redis.SeatHoldTTL)
	assert.Equal(t, 5*time.Second, cfg.Booking.PaymentTimeout)
	assert.Equal(t, 5*time.Minute+5*time.Second, cfg.Booking.RecoveryGrace)
	assert.False(t, cfg.Booking.ImplicitHold)
	assert.Equal(t, "INR", cfg.Booking.Currency)
	assert.Equal(t, "kafka", cfg.Notifications.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notifications.KafkaBrokers)
	assert.Equal(t, 10, cfg.RateLimit.BookingRequests)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero hold ttl", mutate: func(c *Config) { c.Redis.SeatHoldTTL = 0 }},
		{name: "zero payment timeout", mutate: func(c *Config) { c.Booking.PaymentTimeout = 0 }},
		{name: "grace inside payment window", mutate: func(c *Config) { c.Booking.RecoveryGrace = c.Booking.PaymentTimeout }},
		{name: "no seats allowed", mutate: func(c *Config) { c.Booking.MaxSeats = 0 }},
		{name: "unknown notifier", mutate: func(c *Config) { c.Notifications.Backend = "smtp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
