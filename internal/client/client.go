// Package client talks to a running antihoax server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/antihoax/internal/model"
	"github.com/ppiankov/antihoax/internal/ratelimit"
	"github.com/ppiankov/antihoax/internal/verify"
)

const maxBodyBytes = 1 << 20

// APIError is a non-envelope error answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Health is the /api/health answer
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter paces outbound requests per server host
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithDelay adds a fixed pause after each limiter token. Ignored without a limiter.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// Client calls the verification API
type Client struct {
	baseURL string
	host    string
	http    *http.Client
	limiter *ratelimit.Limiter
	delay   time.Duration
}

// New creates a client for the server at baseURL, e.g. http://localhost:3001
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	host, err := ratelimit.HostKey(baseURL)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, eris.Errorf("invalid server URL %q", baseURL)
	}

	c := &Client{
		baseURL: baseURL,
		host:    host,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Verify submits one request. Envelope answers are returned for any status code;
// the second value is the HTTP status.
func (c *Client) Verify(ctx context.Context, req verify.Request) (*model.Envelope, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "encode request")
	}

	data, status, err := c.do(ctx, http.MethodPost, "/api/verify", body)
	if err != nil {
		return nil, status, err
	}

	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Timestamp.IsZero() {
		return nil, status, apiError(status, data)
	}
	env.HTTPStatus = status
	return &env, status, nil
}

// Status fetches the dependency report
func (c *Client) Status(ctx context.Context) (*model.ServiceStatus, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/api/verify/status", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, data)
	}

	var st model.ServiceStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, eris.Wrap(err, "decode status")
	}
	return &st, nil
}

// Health calls the liveness endpoint
func (c *Client) Health(ctx context.Context) (*Health, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, data)
	}

	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, eris.Wrap(err, "decode health")
	}
	return &h, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.WaitWithDelay(ctx, c.host, c.delay); err != nil {
			return nil, 0, eris.Wrap(err, "rate limit wait")
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "read response")
	}
	return data, resp.StatusCode, nil
}

// apiError extracts a message from the {error} or {errors:[{msg}]} bodies the server emits
func apiError(status int, data []byte) error {
	var body struct {
		Error  string `json:"error"`
		Errors []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case len(body.Errors) > 0:
			msg = body.Errors[0].Msg
		}
	}
	return &APIError{StatusCode: status, Message: msg}
}
