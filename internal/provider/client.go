// Package provider opens streaming chat completions against an
// OpenAI-compatible gateway and hands back the raw SSE body.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://ai.gateway.lovable.dev/v1"
	DefaultModel   = "google/gemini-3-flash-preview"

	maxErrorBody = 64 * 1024
)

var (
	// ErrNoAPIKey is returned when the gateway key is not configured.
	ErrNoAPIKey = errors.New("provider API key is not configured")
	// ErrNoMessages is returned for an empty conversation.
	ErrNoMessages = errors.New("at least one message is required")
)

// Kind classifies a non-success gateway response.
type Kind int

const (
	KindUnavailable Kind = iota
	KindRateLimited
	KindQuotaExhausted
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExhausted:
		return "quota_exhausted"
	default:
		return "unavailable"
	}
}

// UpstreamError is a gateway failure before any stream byte was received.
// Detail is for logs only.
type UpstreamError struct {
	Kind   Kind
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("provider %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("provider %s (status %d): %s", e.Kind, e.Status, e.Detail)
}

// StreamAPI sends a streaming completion request.
type StreamAPI interface {
	PostStream(ctx context.Context, req openai.ChatCompletionRequest) (*http.Response, error)
}

// HTTPAdapter posts completion requests to {BaseURL}/chat/completions.
type HTTPAdapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewHTTPAdapter(httpClient *http.Client, baseURL, apiKey string) *HTTPAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPAdapter{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// PostStream sends req and returns the response as-is. The caller owns the body.
func (a *HTTPAdapter) PostStream(ctx context.Context, req openai.ChatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	return a.httpClient.Do(httpReq)
}

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client opens completion streams.
type Client struct {
	api    StreamAPI
	model  string
	logger *zap.Logger
}

// NewClient creates a Client using the HTTP adapter.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClientWithAPI(NewHTTPAdapter(cfg.HTTPClient, cfg.BaseURL, cfg.APIKey), cfg.Model, logger), nil
}

// NewClientWithAPI creates a Client on top of an arbitrary StreamAPI.
func NewClientWithAPI(api StreamAPI, model string, logger *zap.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: api, model: model, logger: logger}
}

// Model returns the model requested from the gateway.
func (c *Client) Model() string {
	return c.model
}

// OpenStream requests a streaming completion for messages and returns the
// undecoded SSE body. Non-success responses become *UpstreamError.
func (c *Client) OpenStream(ctx context.Context, messages []openai.ChatCompletionMessage) (io.ReadCloser, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	resp, err := c.api.PostStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("provider request failed", zap.Error(err))
		return nil, &UpstreamError{Kind: KindUnavailable, Detail: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil
	}
	defer resp.Body.Close()

	upErr := &UpstreamError{
		Kind:   kindForStatus(resp.StatusCode),
		Status: resp.StatusCode,
		Detail: readErrorDetail(resp.Body),
	}
	c.logger.Error("provider gateway error",
		zap.Int("status", upErr.Status),
		zap.Stringer("kind", upErr.Kind),
		zap.String("detail", upErr.Detail),
	)
	return nil, upErr
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusPaymentRequired:
		return KindQuotaExhausted
	default:
		return KindUnavailable
	}
}

// readErrorDetail prefers the OpenAI error envelope and falls back to the raw body.
func readErrorDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))

	var envelope openai.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
