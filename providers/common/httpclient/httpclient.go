// Package httpclient is the shared JSON-over-HTTP client for provider
// adapters. It normalizes transport errors and response statuses into
// outcome classes so chains can treat every failure mode uniformly.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// OutcomeClass classifies one provider attempt.
type OutcomeClass string

const (
	OutcomeSuccess        OutcomeClass = "success"
	OutcomeOverload       OutcomeClass = "overload"
	OutcomeTimeout        OutcomeClass = "timeout"
	OutcomeBlocked        OutcomeClass = "blocked"
	OutcomeServerError    OutcomeClass = "server_error"
	OutcomeTransportError OutcomeClass = "transport_error"
	OutcomeCancelled      OutcomeClass = "cancelled"
)

const maxResponseBytes = 1 << 20

// Config controls client behavior.
type Config struct {
	Timeout time.Duration
	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
}

// Response is one normalized provider attempt result. Class is always set;
// Body is populated only for 2xx responses.
type Response struct {
	Class      OutcomeClass
	StatusCode int
	Body       []byte
	Reason     string
	BackoffMS  int64
}

// Success reports whether the attempt yielded a usable body.
func (r Response) Success() bool {
	return r.Class == OutcomeSuccess
}

// Client executes JSON-over-HTTP provider calls with a bounded timeout.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// New constructs a client with defaults applied.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{http: cfg.HTTPClient, timeout: cfg.Timeout}
}

// PostJSON marshals body and executes one POST attempt.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any) (Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, raw)
}

// Get executes one GET attempt.
func (c *Client) Get(ctx context.Context, endpoint string) (Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (Response, error) {
	if strings.TrimSpace(endpoint) == "" {
		return Response{}, fmt.Errorf("endpoint is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return Response{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return normalizeNetworkError(err), nil
	}
	defer resp.Body.Close()

	out := normalizeStatus(resp.StatusCode, resp.Header.Get("Retry-After"))
	if !out.Success() {
		return out, nil
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		out.Class = OutcomeTransportError
		out.Reason = fmt.Sprintf("response_read_error=%v", err)
		return out, nil
	}
	out.Body = payload
	return out, nil
}

// WithQuery appends/overrides query keys on an endpoint URL.
func WithQuery(rawEndpoint string, pairs map[string]string) (string, error) {
	u, err := url.Parse(rawEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, value := range pairs {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func normalizeNetworkError(err error) Response {
	if errors.Is(err, context.Canceled) {
		return Response{Class: OutcomeCancelled, Reason: "provider_cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Response{Class: OutcomeTimeout, Reason: "provider_timeout"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Response{Class: OutcomeTimeout, Reason: "provider_timeout"}
	}
	return Response{Class: OutcomeTransportError, Reason: "provider_transport_error"}
}

func normalizeStatus(status int, retryAfter string) Response {
	out := Response{StatusCode: status}
	switch {
	case status >= 200 && status <= 299:
		out.Class = OutcomeSuccess
	case status == http.StatusTooManyRequests:
		out.Class = OutcomeOverload
		out.Reason = "provider_overload"
		out.BackoffMS = retryAfterToMS(retryAfter)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		out.Class = OutcomeTimeout
		out.Reason = "provider_timeout"
	case status >= 400 && status <= 499:
		out.Class = OutcomeBlocked
		out.Reason = "provider_client_error"
	default:
		out.Class = OutcomeServerError
		out.Reason = "provider_server_error"
	}
	return out
}

func retryAfterToMS(retryAfter string) int64 {
	if strings.TrimSpace(retryAfter) == "" {
		return 500
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter))
	if err != nil || seconds < 1 {
		return 500
	}
	return int64(seconds) * 1000
}
