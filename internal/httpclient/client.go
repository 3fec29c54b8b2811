// Package httpclient is the outbound adapter to the attendance API. It adds
// the JSON defaults and authenticates each request with the bearer token
// found in the caller's cookie jar.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"attendance/internal/entity"
	"attendance/internal/metrics"
)

// DefaultTokenCookie is the cookie that carries the access token.
const DefaultTokenCookie = "access_token"

const maxErrorBody = 1 << 20

// Client sends JSON requests to the attendance API.
type Client struct {
	baseURL     string
	headers     http.Header
	tokenCookie string
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Client)

// WithTimeout bounds every request. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

func WithTokenCookie(name string) Option {
	return func(c *Client) { c.tokenCookie = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for baseURL. Content-Type and Accept default to JSON.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		headers:     http.Header{},
		tokenCookie: DefaultTokenCookie,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      slog.Default(),
	}
	c.headers.Set("Content-Type", "application/json")
	c.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Do sends one request and decodes a 2xx JSON body into out. Non-2xx
// responses are returned as *HTTPError; nothing is retried.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(method, resp, start)
	if err != nil {
		c.logger.DebugContext(ctx, "upstream request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		return readError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// authorize sets the bearer header when the request context carries a
// browser cookie jar holding a token. Without one the request goes out
// unauthenticated.
func (c *Client) authorize(req *http.Request) {
	if token := TokenFrom(req.Context(), c.tokenCookie); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) observe(method string, resp *http.Response, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "error"
	if resp != nil {
		status = metrics.StatusClass(resp.StatusCode)
	}
	c.metrics.UpstreamRequests.WithLabelValues(method, status).Inc()
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func readError(resp *http.Response) error {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", err)}
	}
	var env entity.Envelope
	if json.Unmarshal(respBody, &env) == nil {
		if env.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: env.Error}
		}
		if env.Message != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: env.Message}
		}
	}
	msg := string(bytes.TrimSpace(respBody))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}
