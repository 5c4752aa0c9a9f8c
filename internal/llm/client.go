package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/passport_api/internal/config"
)

// Message is one chat message. Content is either a string or a list of ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is a typed part of a multi-part user message.
type ContentPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *FilePart `json:"file,omitempty"`
}

// FilePart carries a document as a data URL.
type FilePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// Plugin enables a provider-side plugin such as PDF parsing.
type Plugin struct {
	ID  string         `json:"id"`
	PDF map[string]any `json:"pdf,omitempty"`
}

// Request is a single chat completion call.
type Request struct {
	Title       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Plugins     []Plugin
	Timeout     time.Duration
}

// TransportError reports a network failure, timeout or non-success status from the model endpoint.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model API error: %d - %s", e.StatusCode, truncateString(e.Body, 500))
	}
	return fmt.Sprintf("model API request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client talks to an OpenRouter-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	referer    string
	httpClient *http.Client
}

// NewClient creates a new model client
func NewClient(cfg *config.LLMConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		referer:    cfg.Referer,
		httpClient: &http.Client{},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the request and returns the text of the first choice.
func (c *Client) Complete(ctx context.Context, r Request) (string, error) {
	rid := uuid.New().String()[:8]
	start := time.Now()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	requestBody := map[string]interface{}{
		"model":       c.model,
		"messages":    r.Messages,
		"temperature": r.Temperature,
	}
	if r.MaxTokens > 0 {
		requestBody["max_tokens"] = r.MaxTokens
	}
	if len(r.Plugins) > 0 {
		requestBody["plugins"] = r.Plugins
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if r.Title != "" {
		req.Header.Set("X-Title", r.Title)
	}

	log.Debug().Str("llm_request_id", rid).Str("model", c.model).Str("title", r.Title).Int("body_bytes", len(jsonBody)).Msg("Sending model request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("request timed out after %s: %w", r.Timeout, err)
		}
		log.Error().Err(err).Str("llm_request_id", rid).Dur("elapsed", time.Since(start)).Msg("Model request failed")
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().Str("llm_request_id", rid).Int("status", resp.StatusCode).Str("response", truncateString(string(body), 500)).Msg("Model API returned error status")
		return "", &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return "", &TransportError{Err: errors.New("no response from API")}
	}

	content := result.Choices[0].Message.Content
	log.Debug().Str("llm_request_id", rid).Dur("elapsed", time.Since(start)).Int("content_len", len(content)).Msg("Model response received")
	return content, nil
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
