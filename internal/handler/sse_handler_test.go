package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/passport_api/internal/config"
	"github.com/GTDGit/passport_api/internal/models"
	"github.com/GTDGit/passport_api/internal/service"
	"github.com/GTDGit/passport_api/internal/sse"
)

// streamRecorder adds the CloseNotifier that gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func sseRouter(h *SSEHandler) *gin.Engine {
	r := gin.New()
	r.GET("/api/events", h.Stream)
	return r
}

func TestSSEStreamRejectsMissingOrBadToken(t *testing.T) {
	auth := service.NewAuthService(&config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour})
	r := sseRouter(NewSSEHandler(sse.NewHub(), auth))

	tests := []struct {
		name string
		url  string
		code string
	}{
		{"missing", "/api/events", "UNAUTHORIZED"},
		{"invalid", "/api/events?token=garbage", "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestSSEStreamDeliversRecordEvents(t *testing.T) {
	hub := sse.NewHub()
	auth := service.NewAuthService(&config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour})
	token, err := auth.IssueToken("operator")
	require.NoError(t, err)
	r := sseRouter(NewSSEHandler(hub, auth))

	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events?token="+token, nil))
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	sse.NewHubNotifier(hub).NotifyRecordCreated(&models.PassportRecord{ID: 42, Filename: "scan.pdf"})
	hub.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after hub close")
	}

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event:connected")
	assert.Contains(t, body, "event:record")
	assert.Contains(t, body, `"event":"record.created"`)
	assert.Contains(t, body, `"recordId":42`)
}

func TestSSEStreamOpenWithoutAuth(t *testing.T) {
	hub := sse.NewHub()
	r := sseRouter(NewSSEHandler(hub, nil))

	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.Close()
	<-done
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous-")
}
