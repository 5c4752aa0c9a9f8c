package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/passport_api/internal/service"
	"github.com/GTDGit/passport_api/internal/sse"
	"github.com/GTDGit/passport_api/internal/utils"
)

// SSEHandler streams record lifecycle events to operator dashboards.
type SSEHandler struct {
	hub          *sse.Hub
	authService  *service.AuthService
	pingInterval time.Duration
}

// NewSSEHandler creates a new SSEHandler. A nil authService leaves the stream open to anyone.
func NewSSEHandler(hub *sse.Hub, authService *service.AuthService) *SSEHandler {
	return &SSEHandler{hub: hub, authService: authService, pingInterval: 30 * time.Second}
}

// Stream handles GET /api/events?token=<jwt>
// EventSource API cannot set custom headers, so JWT is passed via query param.
func (h *SSEHandler) Stream(c *gin.Context) {
	operator := "anonymous"
	if h.authService != nil {
		token := c.Query("token")
		if token == "" {
			utils.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing token query parameter")
			return
		}
		claims, err := h.authService.ValidateToken(token)
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}
		operator = claims.Username
	}

	clientID := fmt.Sprintf("%s-%d", operator, time.Now().UnixNano())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	client := h.hub.Register(clientID)
	defer h.hub.Unregister(clientID)

	c.SSEvent("connected", gin.H{
		"clientId":  clientID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	c.Writer.Flush()

	log.Info().Str("client_id", clientID).Str("operator", operator).Msg("Record event stream started")

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-client.Events:
			if !ok {
				return false
			}
			c.SSEvent("record", string(data))
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
