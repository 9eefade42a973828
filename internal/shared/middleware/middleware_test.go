package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func contextWithAuth(header string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		c.Request.Header.Set("Authorization", header)
	}
	return c
}

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()
	valid := signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	got, err := authenticate(contextWithAuth("Bearer "+valid), secret)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "missing header", header: "", want: ErrMissingAuthHeader},
		{name: "not bearer", header: "Basic " + valid, want: ErrMalformedAuthHeader},
		{name: "wrong secret", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": userID.String()}), want: ErrInvalidToken},
		{name: "expired", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
			"user_id": userID.String(),
			"exp":     time.Now().Add(-time.Minute).Unix(),
		}), want: ErrInvalidToken},
		{name: "no user claim", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "someone"}), want: ErrInvalidClaims},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authenticate(contextWithAuth(tt.header), secret)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTAuth_RejectsWithReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/me", JWTAuth(secret), func(c *gin.Context) {
		userID, _ := CurrentUserID(c)
		c.String(http.StatusOK, userID.String())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrMalformedAuthHeader.Error())

	userID := uuid.New()
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": userID.String()}))
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Body.String())
}
