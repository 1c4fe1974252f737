// Package llm provides a provider-agnostic oracle client with per-call
// timeouts, exponential backoff retries, and endpoint fallback.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize caps the oracle response body.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// defaultCallTimeout bounds a single oracle call when the endpoint does
// not override it.
const defaultCallTimeout = 120 * time.Second

// Endpoint describes one oracle endpoint. The first endpoint in a client's
// list is the primary; the rest are fallbacks tried in order.
type Endpoint struct {
	// Name labels the endpoint in logs and reports.
	Name string `yaml:"name"`

	// Provider selects the wire protocol ("anthropic", "ollama", "openai").
	Provider string `yaml:"provider"`

	// URL is the base URL. Empty uses the provider default.
	URL string `yaml:"url"`

	// Model is the model identifier sent to the endpoint.
	Model string `yaml:"model"`

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int `yaml:"max_tokens"`
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request is one completion request.
type Request struct {
	// Messages is the conversation to send, system message first.
	Messages []Message

	// Temperature controls randomness. nil uses the endpoint default.
	Temperature *float64

	// MaxTokens overrides the endpoint's response limit when > 0.
	MaxTokens int
}

// TokenUsage reports token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the oracle's completion result.
type Response struct {
	// RequestID uniquely identifies this call for log correlation.
	RequestID string

	// Content is the generated text, unmodified.
	Content string

	// Model is the model that actually answered.
	Model string

	// Endpoint is the name of the endpoint that answered.
	Endpoint string

	// Usage holds token consumption when the endpoint reports it.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Client calls oracle endpoints with retry and fallback.
type Client struct {
	endpoints   []Endpoint
	httpClient  *http.Client
	retryConfig RetryConfig
	callTimeout time.Duration
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the transport retry policy.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithCallTimeout sets the per-call deadline.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.callTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a client over the given endpoints. The first endpoint
// is the primary.
func NewClient(endpoints []Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		endpoints:   endpoints,
		retryConfig: DefaultRetryConfig(),
		callTimeout: defaultCallTimeout,
		httpClient:  &http.Client{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends a completion request, retrying transient failures on each
// endpoint and falling back to the next on exhaustion. A fatal error on any
// endpoint aborts immediately. When every endpoint fails the error wraps
// ErrOracleTimeout if the last failure was a deadline expiry, otherwise
// ErrOracleUnavailable.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(c.endpoints) == 0 {
		return nil, fmt.Errorf("%w: no endpoints configured", ErrOracleUnavailable)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	requestID := uuid.New().String()

	var lastErr error
	for _, ep := range c.endpoints {
		resp, err := c.tryEndpoint(ctx, ep, req)
		if err == nil {
			resp.RequestID = requestID
			resp.Endpoint = ep.Name
			return resp, nil
		}

		lastErr = err

		if IsFatal(err) {
			c.logger.Warn("oracle call failed fatally",
				"request_id", requestID,
				"endpoint", ep.Name,
				"provider", ep.Provider,
				"error", err)
			return nil, fmt.Errorf("%w: endpoint %s: %w", ErrOracleUnavailable, ep.Name, err)
		}
		if ctx.Err() != nil {
			break
		}

		c.logger.Warn("oracle endpoint exhausted, trying fallback",
			"request_id", requestID,
			"endpoint", ep.Name,
			"provider", ep.Provider,
			"error", err)
	}

	if isTimeout(lastErr) {
		return nil, fmt.Errorf("%w: %w", ErrOracleTimeout, lastErr)
	}
	return nil, fmt.Errorf("%w: all endpoints failed: %w", ErrOracleUnavailable, lastErr)
}

// tryEndpoint attempts one endpoint with retries on transient failures.
func (c *Client) tryEndpoint(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if IsFatal(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}

		if attempt < c.retryConfig.MaxRetries {
			backoff := c.backoff(attempt)
			c.logger.Debug("oracle call failed, retrying",
				"endpoint", ep.Name,
				"attempt", attempt+1,
				"max_retries", c.retryConfig.MaxRetries,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(backoff):
			}
		}
	}

	return nil, lastErr
}

// backoff computes the exponential backoff for a retry with +/- 25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest executes a single HTTP call under the per-call deadline.
func (c *Client) doRequest(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = ep.MaxTokens
	}

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	url := provider.BuildURL(ep.URL)
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	c.logger.Debug("sending oracle request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"messages", len(req.Messages))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors and deadline expiries are transient.
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		return nil, NewTransientError(err)
	}
	return resp, nil
}

// classifyHTTPError sorts an HTTP error status into transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("oracle API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	default:
		// Auth failures, bad requests, and anything else client-side.
		return NewFatalError(err)
	}
}
