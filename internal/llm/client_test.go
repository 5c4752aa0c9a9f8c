package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/passport_api/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(&config.LLMConfig{
		BaseURL: url + "/",
		APIKey:  "test-key",
		Model:   "test-model",
		Referer: "http://localhost",
	})
}

func TestCompleteSendsRequest(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "Passport Translator", r.Header.Get("X-Title"))
		assert.Equal(t, "http://localhost", r.Header.Get("HTTP-Referer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Complete(t.Context(), Request{
		Title:     "Passport Translator",
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 100,
		Plugins:   []Plugin{{ID: "file-parser", PDF: map[string]any{"engine": "native"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, float64(100), captured["max_tokens"])
	assert.Len(t, captured["plugins"], 1)
}

func TestCompleteNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusTooManyRequests, terr.StatusCode)
	assert.Contains(t, terr.Error(), "rate limited")
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(t.Context(), Request{})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(t.Context(), Request{Timeout: 50 * time.Millisecond})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
