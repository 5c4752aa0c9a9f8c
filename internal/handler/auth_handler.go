package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/passport_api/internal/middleware"
	"github.com/GTDGit/passport_api/internal/service"
	"github.com/GTDGit/passport_api/internal/utils"
)

type AuthHandler struct {
	authService *service.AuthService
	limiter     *middleware.FailedAttemptLimiter
}

// NewAuthHandler creates a new AuthHandler. limiter may be nil.
func NewAuthHandler(authService *service.AuthService, limiter *middleware.FailedAttemptLimiter) *AuthHandler {
	return &AuthHandler{authService: authService, limiter: limiter}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if h.limiter != nil && h.limiter.Blocked(c.ClientIP()) {
		utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many failed login attempts")
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if h.limiter != nil {
			h.limiter.Allow(c.ClientIP())
		}
		utils.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
		return
	}

	utils.Success(c, http.StatusOK, "Login successful", gin.H{
		"token": token,
	})
}
