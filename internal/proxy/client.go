package proxy

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
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is kept for logs.
	maxErrorBody = 4 << 10
)

var (
	ErrUnauthorized = errors.New("upstream rejected credentials")
	ErrRateLimited  = errors.New("upstream rate limit exceeded")
	ErrUpstream     = errors.New("upstream request failed")
)

// StatusError is returned for any non-2xx upstream response. It unwraps to
// ErrUnauthorized, ErrRateLimited or ErrUpstream depending on the status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUpstream
	}
}

// Client talks to an OpenAI-compatible chat completions endpoint. Every call
// makes exactly one HTTP attempt.
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client for baseURL. An empty baseURL selects
// DefaultBaseURL and a non-positive timeout selects DefaultTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// NewClientWithBaseURL creates a client with the default timeout (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return NewClient(baseURL, apiKey, DefaultTimeout)
}

// HasKey reports whether a credential is configured.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// Chat sends a non-streaming chat completion request and decodes the reply.
// Transport failures, timeouts and undecodable bodies are wrapped in
// ErrUpstream.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrUpstream, err)
	}
	return &out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
