package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/passport_api/internal/config"
	"github.com/GTDGit/passport_api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetOperator(c))
	})
	return r
}

func TestCORSMiddleware(t *testing.T) {
	r := newRouter(CORSMiddleware([]string{"intake.example.org", "localhost:3000"}))

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"allowed origin", "Origin", "https://intake.example.org", "https://intake.example.org"},
		{"default port stripped", "Origin", "https://intake.example.org:443", "https://intake.example.org:443"},
		{"referer fallback", "Referer", "http://localhost:3000/records/1", "http://localhost:3000"},
		{"unknown origin", "Origin", "https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(tt.header, tt.value)
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	r := newRouter(LoggingMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get("X-Request-Id"), 8)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get("X-Request-Id"))
}

func TestJWTMiddleware(t *testing.T) {
	auth := service.NewAuthService(&config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour})
	token, err := auth.IssueToken("operator")
	require.NoError(t, err)

	r := newRouter(NewJWTMiddleware(auth, nil).Handle())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "operator", w.Body.String())
			}
		})
	}
}

func TestJWTMiddlewareLimitsFailures(t *testing.T) {
	auth := service.NewAuthService(&config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour})
	r := newRouter(NewJWTMiddleware(auth, NewFailedAttemptLimiter()).Handle())

	codes := make([]int, 0, maxFailedAttempts+1)
	for i := 0; i <= maxFailedAttempts; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusUnauthorized, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[maxFailedAttempts])
}

func TestFailedAttemptLimiterWindow(t *testing.T) {
	l := NewFailedAttemptLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < maxFailedAttempts; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.True(t, l.Blocked("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	now = now.Add(2 * failedAttemptWindow)
	assert.False(t, l.Blocked("10.0.0.1"))
	l.evict()
	assert.Empty(t, l.attempts)
	assert.True(t, l.Allow("10.0.0.1"))
}
