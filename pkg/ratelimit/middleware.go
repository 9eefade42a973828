package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"seatbook/internal/shared/utils/response"
	"seatbook/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware limits every request by client IP, bucketed by route
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := getClientIP(c)
		limitType := getRateLimitType(c.FullPath())

		result, err := rateLimiter.IsAllowed(c.Request.Context(), clientIP, limitType)
		if err != nil {
			// fail open
			logger.GetDefault().WarnWithContext(c.Request.Context(), "rate limit check failed", map[string]interface{}{
				"client_ip": clientIP,
				"error":     err.Error(),
			})
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if !result.Allowed {
			logger.GetDefault().LogRateLimitExceeded(c.Request.Context(), clientIP, c.FullPath())
			response.RespondJSON(c, "error", http.StatusTooManyRequests,
				"Rate limit exceeded", nil, map[string]interface{}{
					"limit":      result.Limit,
					"reset_time": result.ResetTime,
				})
			c.Abort()
			return
		}

		c.Next()
	}
}

func getRateLimitType(path string) RateLimitType {
	switch {
	case strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/ping"):
		return RateLimitTypeHealth

	case strings.Contains(path, "/holds"):
		return RateLimitTypeHold

	case strings.Contains(path, "/bookings"),
		strings.Contains(path, "/wallet"):
		return RateLimitTypeBooking

	case strings.Contains(path, "/events"):
		return RateLimitTypePublic

	default:
		return RateLimitTypeDefault
	}
}

// extracts real client IP
func getClientIP(c *gin.Context) string {
	if xForwardedFor := c.GetHeader("X-Forwarded-For"); xForwardedFor != "" {
		ip := strings.TrimSpace(strings.Split(xForwardedFor, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xRealIP := c.GetHeader("X-Real-IP"); net.ParseIP(xRealIP) != nil {
		return xRealIP
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}
