// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/gigchat-tui/internal/model"
)

// Configuration constants for the marketplace API client.
const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient (5xx) errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

// PERFORMANCE: Shared HTTP client with connection pooling for all
// marketplace API requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: DefaultTimeout,
}

// Error variables for common API client errors.
var (
	// ErrNotConfigured indicates no bearer token is set.
	ErrNotConfigured = errors.New("auth token not configured")

	// ErrUnauthorized indicates the backend rejected the credentials.
	// The session-cleared callback has already run when this is returned,
	// unless the request opted out with SkipLogout.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError represents a non-2xx response from the marketplace backend.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("marketplace API error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("marketplace API error (HTTP %d)", e.Status)
}

// apiErrorResponse is the backend's error envelope.
type apiErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// =============================================================================
// IDENTITY
// =============================================================================

// Identity describes the authenticated marketplace user.
type Identity struct {
	UserID   string
	UserName string
	Role     model.Role
}

// Provider supplies the current user's identity and the authorized-request
// function the chat core uses for all backend HTTP calls.
type Provider interface {
	// Identity returns the authenticated user.
	Identity() Identity

	// Do performs an authorized request against the backend. body (when
	// non-nil) is JSON-encoded; out (when non-nil) receives the decoded
	// JSON response.
	Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error
}

// =============================================================================
// REQUEST OPTIONS
// =============================================================================

type requestOptions struct {
	skipLogout bool
	noRetry    bool
}

// RequestOption customizes a single authorized request.
type RequestOption func(*requestOptions)

// SkipLogout suppresses the session-cleared callback for this request; a
// 401 is then reported as ErrUnauthorized without side effects.
func SkipLogout() RequestOption {
	return func(o *requestOptions) { o.skipLogout = true }
}

// NoRetry disables the transient-error retry loop for this request.
func NoRetry() RequestOption {
	return func(o *requestOptions) { o.noRetry = true }
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the authorized HTTP client for the marketplace backend.
// It implements Provider.
type Client struct {
	baseURL    string
	token      string
	identity   Identity
	maxRetries int

	// onSessionCleared runs once when a 401 invalidates the session.
	onSessionCleared func()
	clearOnce        sync.Once
}

// NewClient creates an authorized client for the given backend base URL.
// The token should be the bearer credential issued at login; if it is
// empty the client is still created but requests fail with
// ErrNotConfigured.
func NewClient(baseURL, token string, id Identity) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      strings.TrimSpace(token),
		identity:   id,
		maxRetries: DefaultMaxRetries,
	}
}

// WithSessionClearedCallback sets the function invoked when the backend
// returns 401. The callback runs at most once per client.
func (c *Client) WithSessionClearedCallback(fn func()) *Client {
	c.onSessionCleared = fn
	return c
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Client) WithMaxRetries(n int) *Client {
	c.maxRetries = n
	return c
}

// Identity returns the authenticated user.
func (c *Client) Identity() Identity {
	return c.identity
}

// IsConfigured returns true if the client has a bearer token.
func (c *Client) IsConfigured() bool {
	return c.token != ""
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs an authorized request. Transient 5xx responses are retried
// with exponential backoff; 401 clears the session (unless SkipLogout)
// and returns ErrUnauthorized.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := c.maxRetries
	if ro.noRetry {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		respBody, err := c.doRequest(ctx, method, path, payload, ro)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return err
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP round trip.
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte, ro requestOptions) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if !ro.skipLogout {
			c.clearSession()
		}
		return nil, ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// clearSession runs the session-cleared callback exactly once.
func (c *Client) clearSession() {
	c.clearOnce.Do(func() {
		log.Printf("identity: session invalidated by backend (401)")
		if c.onSessionCleared != nil {
			c.onSessionCleared()
		}
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// readResponse reads the response body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// parseAPIError converts an error response to an APIError, preferring the
// backend's message when the envelope parses.
func parseAPIError(status int, body []byte) error {
	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil {
		msg := envelope.Message
		if msg == "" {
			msg = envelope.Error
		}
		if msg != "" {
			return &APIError{Status: status, Message: msg}
		}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	return false
}

// calculateBackoff returns the delay to wait before the next retry.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
