package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the root URL of the task server.
	BaseURL string

	// Token supplies the bearer token. Nil sends requests unauthenticated.
	Token oauth2.TokenSource

	Timeout time.Duration

	// MaxRetries bounds in-place retries of one request on transport
	// errors, 429 and 5xx.
	MaxRetries int

	// RetryDelay is the wait between those retries.
	RetryDelay time.Duration

	// RatePerSec caps outgoing requests. Zero means unlimited.
	RatePerSec float64

	// Transport overrides http.DefaultTransport underneath the auth layer.
	Transport http.RoundTripper
}

// Client is a thin HTTP client for the task REST API.
// It attaches the bearer token, paces requests, and retries transient
// failures with a fixed delay.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a new API client from cfg.
func NewClient(cfg Config) *Client {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	var transport http.RoundTripper = base
	if cfg.Token != nil {
		transport = &oauth2.Transport{Source: cfg.Token, Base: base}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: retries,
		retryDelay: cfg.RetryDelay,
	}
}

type idempotencyKey struct{}

// WithIdempotencyKey attaches key to ctx; requests made with the returned
// context send it as the Idempotency-Key header.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// do performs a request with retries and decodes the response envelope.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
) (*envelope, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.waitFor(lastErr)):
			}
		}

		env, err := c.send(ctx, method, path, payload)
		if err == nil {
			return env, nil
		}

		var retry *retryableError
		if !errors.As(err, &retry) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryableError marks failures worth another attempt.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) waitFor(err error) time.Duration {
	var retry *retryableError
	if errors.As(err, &retry) && retry.retryAfter > 0 {
		return retry.retryAfter
	}
	return c.retryDelay
}

// send performs exactly one request.
func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	payload []byte,
) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key, ok := ctx.Value(idempotencyKey{}).(string); ok && key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("executing request %s %s: %w", method, path, err)}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, &retryableError{err: fmt.Errorf("reading response body: %w", readErr)}
	}

	var env envelope
	var decodeErr error
	if len(bytes.TrimSpace(respBody)) > 0 {
		decodeErr = json.Unmarshal(respBody, &env)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryableError{
			err:        fmt.Errorf("rate limited (429) on %s %s", method, path),
			retryAfter: retryAfter(resp),
		}
	case resp.StatusCode >= 500:
		return nil, &retryableError{err: &StatusError{
			Code: resp.StatusCode, Method: method, Path: path, Message: env.Message,
		}}
	case resp.StatusCode == http.StatusUnauthorized:
		msg := env.Message
		if msg == "" {
			msg = "check your API token"
		}
		return nil, &AuthError{Message: msg}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StatusError{
			Code: resp.StatusCode, Method: method, Path: path, Message: env.Message,
		}
	}

	// No content to parse (e.g. 204).
	if len(bytes.TrimSpace(respBody)) == 0 {
		return &envelope{Success: true}, nil
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("unmarshaling response from %s %s: %w", method, path, decodeErr)
	}

	return &env, nil
}

// retryAfter reads the Retry-After header in seconds.
func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
