package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with request and booking helpers
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout, level taken from LOG_LEVEL
func New() *Logger {
	return NewWithWriter(os.Stdout, getLogLevel(os.Getenv("LOG_LEVEL")))
}

// NewWithWriter creates a logger writing to w at the given level
func NewWithWriter(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// text in development, JSON everywhere else
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(fieldArgs(fields)...)}
}

// LogHTTPRequest logs a completed HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHoldGranted logs a granted (or refreshed) seat hold
func (l *Logger) LogHoldGranted(ctx context.Context, eventID, holderID string, seats int, expiresAt time.Time) {
	l.Logger.InfoContext(ctx,
		"Hold Granted",
		slog.String("event_id", eventID),
		slog.String("holder_id", holderID),
		slog.Int("seats", seats),
		slog.Time("expires_at", expiresAt),
	)
}

// LogHoldReleased logs an explicit hold release
func (l *Logger) LogHoldReleased(ctx context.Context, holderID string, released int) {
	l.Logger.InfoContext(ctx,
		"Hold Released",
		slog.String("holder_id", holderID),
		slog.Int("released", released),
	)
}

// LogBookingConfirmed logs a committed booking
func (l *Logger) LogBookingConfirmed(ctx context.Context, bookingID, eventID, userID string, amount int64) {
	l.Logger.InfoContext(ctx,
		"Booking Confirmed",
		slog.String("booking_id", bookingID),
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
	)
}

// LogBookingCancelled logs a cancelled booking
func (l *Logger) LogBookingCancelled(ctx context.Context, bookingID, userID, reason string) {
	l.Logger.InfoContext(ctx,
		"Booking Cancelled",
		slog.String("booking_id", bookingID),
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
}

// LogCompensation logs a saga compensation run
func (l *Logger) LogCompensation(ctx context.Context, bookingID, reason string, seatsReleased int64, refunded bool) {
	l.Logger.WarnContext(ctx,
		"Booking Compensated",
		slog.String("booking_id", bookingID),
		slog.String("reason", reason),
		slog.Int64("seats_released", seatsReleased),
		slog.Bool("refunded", refunded),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Logger.InfoContext(ctx, msg, fieldArgs(fields)...)
}

// WarnWithContext logs a warning with context
func (l *Logger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Logger.WarnContext(ctx, msg, fieldArgs(fields)...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := append([]interface{}{slog.String("error", err.Error())}, fieldArgs(fields)...)
	l.Logger.ErrorContext(ctx, msg, args...)
}

func fieldArgs(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return args
}

// Global logger instance
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
