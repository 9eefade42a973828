package ratelimit

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"seatbook/internal/shared/constants"
	"seatbook/pkg/clock"

	"github.com/redis/go-redis/v9"
)

type RateLimitType string

const (
	RateLimitTypeDefault RateLimitType = "default"
	RateLimitTypePublic  RateLimitType = "public"
	RateLimitTypeHold    RateLimitType = "hold"
	RateLimitTypeBooking RateLimitType = "booking"
	RateLimitTypeHealth  RateLimitType = "health"
)

type Config struct {
	Enabled         bool          `json:"enabled"`
	WindowDuration  time.Duration `json:"window_duration"`
	DefaultRequests int           `json:"default_requests"`
	PublicRequests  int           `json:"public_requests"`
	HoldRequests    int           `json:"hold_requests"`
	BookingRequests int           `json:"booking_requests"`
	HealthRequests  int           `json:"health_requests"`
	WhitelistedIPs  []string      `json:"whitelisted_ips"`
}

// Result represents rate limit check result
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// Sliding window over a sorted set scored by request time in milliseconds
const luaSlidingWindow = `
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local current_count = redis.call('ZCARD', key)
if current_count >= limit then
    redis.call('PEXPIRE', key, window_ms)
    return {current_count + 1, 0}
end

redis.call('ZADD', key, now, ARGV[5])
redis.call('PEXPIRE', key, window_ms)

return {current_count + 1, limit - current_count - 1}
`

var slidingWindowScript = redis.NewScript(luaSlidingWindow)

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client redis.Cmdable
	config *Config
	clock  clock.Clock
}

func NewRateLimiter(client redis.Cmdable, config *Config, clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		clock:  clk,
	}
}

// IsAllowed counts the request against the client's window for limitType
func (r *RateLimiter) IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error) {
	limit := r.getLimit(limitType)
	now := r.clock.Now()

	if !r.config.Enabled || r.isWhitelisted(clientIP) {
		return &Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetTime: now.Add(r.config.WindowDuration).Unix(),
		}, nil
	}

	key := constants.RATE_LIMIT_PREFIX + clientIP + ":" + string(limitType)
	return r.checkLimit(ctx, key, limit, now)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, now time.Time) (*Result, error) {
	windowStart := now.Add(-r.config.WindowDuration)

	result, err := slidingWindowScript.Run(ctx, r.client, []string{key},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		limit,
		r.config.WindowDuration.Milliseconds(),
		strconv.FormatInt(now.UnixNano(), 10),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response: %v", result)
	}

	return &Result{
		Allowed:   int(result[0]) <= limit,
		Limit:     limit,
		Remaining: int(result[1]),
		ResetTime: now.Add(r.config.WindowDuration).Unix(),
	}, nil
}

func (r *RateLimiter) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return r.config.PublicRequests
	case RateLimitTypeHold:
		return r.config.HoldRequests
	case RateLimitTypeBooking:
		return r.config.BookingRequests
	case RateLimitTypeHealth:
		return r.config.HealthRequests
	default:
		return r.config.DefaultRequests
	}
}

func (r *RateLimiter) isWhitelisted(ip string) bool {
	return slices.Contains(r.config.WhitelistedIPs, ip)
}
