package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/passport_api/internal/service"
	"github.com/GTDGit/passport_api/internal/utils"
)

// JWTMiddleware requires a valid operator bearer token.
type JWTMiddleware struct {
	authService *service.AuthService
	limiter     *FailedAttemptLimiter
}

// NewJWTMiddleware constructs a new JWTMiddleware. limiter may be nil.
func NewJWTMiddleware(authService *service.AuthService, limiter *FailedAttemptLimiter) *JWTMiddleware {
	return &JWTMiddleware{authService: authService, limiter: limiter}
}

// Handle returns a Gin middleware function that enforces authentication.
func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.reject(c, "UNAUTHORIZED", "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.reject(c, "UNAUTHORIZED", "Invalid authorization header")
			return
		}

		claims, err := m.authService.ValidateToken(parts[1])
		if err != nil {
			m.reject(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("operator", claims.Username)
		c.Next()
	}
}

func (m *JWTMiddleware) reject(c *gin.Context, code, message string) {
	if m.limiter != nil && !m.limiter.Allow(c.ClientIP()) {
		utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many invalid authentication attempts")
		c.Abort()
		return
	}
	utils.Error(c, 401, code, message)
	c.Abort()
}

// GetOperator returns the authenticated operator name, or "" when auth is disabled.
func GetOperator(c *gin.Context) string {
	return c.GetString("operator")
}
