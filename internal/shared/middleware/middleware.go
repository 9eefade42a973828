package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"seatbook/internal/shared/utils/response"
	"seatbook/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const userIDKey = "user_id"

var (
	ErrMissingAuthHeader   = errors.New("authorization header is required")
	ErrMalformedAuthHeader = errors.New("authorization header format must be Bearer {token}")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrInvalidClaims       = errors.New("token has no valid user_id claim")
)

// JWTAuth rejects requests without a valid HS256 bearer token carrying a user_id claim
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authenticate(c, secret)
		if err != nil {
			logger.GetDefault().WarnWithContext(c.Request.Context(), "authentication failed", map[string]interface{}{
				"reason": err.Error(),
				"ip":     c.ClientIP(),
			})
			response.RespondJSON(c, "error", http.StatusUnauthorized, err.Error(), nil, nil)
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and lets anonymous requests through
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if userID, err := authenticate(c, secret); err == nil {
				c.Set(userIDKey, userID)
			}
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user set by JWTAuth or OptionalAuth
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

// authenticate returns the token's user; its errors are safe to show to clients
func authenticate(c *gin.Context, secret string) (uuid.UUID, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return uuid.Nil, ErrMissingAuthHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return uuid.Nil, ErrMalformedAuthHeader
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidClaims
	}
	raw, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidClaims
	}
	return userID, nil
}

// RequestLogger logs every request once it completes
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.GetDefault().LogHTTPRequest(c, time.Since(start))
	}
}
