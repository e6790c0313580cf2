// Package backend is the HTTP gateway to the OpenX agent service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/asynkron/openx/internal/logging"
)

// DefaultTimeout bounds every HTTP round trip.
const DefaultTimeout = 120 * time.Second

const maxErrorBody = 4 * 1024

// Client talks to the agent service over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	retry      *RetryConfig
	metrics    Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry enables retries of GET /tools. Without it every request is tried once.
func WithRetry(cfg *RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithMetrics records every round trip into m.
func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient validates baseURL and returns a client for it.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("backend: base URL is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("backend: base URL %q must use http or https", baseURL)
	}

	c := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     &logging.NoOpLogger{},
		metrics:    NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Metrics exposes the round-trip collector.
func (c *Client) Metrics() Metrics {
	return c.metrics
}

// Health reports whether GET /health answers with a 2xx status.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRequest("/health", time.Since(started), false)
		c.logger.Warn(ctx, "health probe failed", logging.Field("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.metrics.RecordRequest("/health", time.Since(started), ok)
	return ok
}

// ListTools fetches the palette entries advertised by the service.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var raw []byte
	err := executeWithRetry(ctx, c.retry, func() error {
		var err error
		raw, err = c.do(ctx, http.MethodGet, "/tools", nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("backend: list tools: %w", err)
	}
	if err := validateTools(raw); err != nil {
		return nil, fmt.Errorf("backend: list tools: %w", err)
	}
	var tools []Tool
	if err := json.Unmarshal(raw, &tools); err != nil {
		return nil, fmt.Errorf("backend: decode tools: %w", err)
	}
	return tools, nil
}

// Chat sends one message to the agent within a conversation.
func (c *Client) Chat(ctx context.Context, message, conversationID string) (ChatResponse, error) {
	raw, err := c.do(ctx, http.MethodPost, "/chat", chatRequest{Message: message, ConversationID: conversationID})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("backend: chat: %w", err)
	}
	var out ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ChatResponse{}, fmt.Errorf("backend: decode chat response: %w", err)
	}
	return out, nil
}

// Run executes a raw command string via POST /run.
func (c *Client) Run(ctx context.Context, command string) (RunResponse, error) {
	raw, err := c.do(ctx, http.MethodPost, "/run", runRequest{Command: command})
	if err != nil {
		return RunResponse{}, fmt.Errorf("backend: run: %w", err)
	}
	var out RunResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return RunResponse{}, fmt.Errorf("backend: decode run response: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRequest(path, time.Since(started), false)
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordRequest(path, time.Since(started), resp.StatusCode >= 200 && resp.StatusCode < 300)

	c.logger.Debug(ctx, "backend round trip",
		logging.Field("method", method),
		logging.Field("path", path),
		logging.Field("status", resp.StatusCode),
		logging.Field("elapsed", time.Since(started).Round(time.Millisecond)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Status: resp.Status, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

// StatusError reports a non-2xx answer.
type StatusError struct {
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %s: %s", e.Status, e.Body)
}
