// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flagapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sirseerhq/flagport/internal/apierror"
	porterrors "github.com/sirseerhq/flagport/internal/errors"
	"github.com/sirseerhq/flagport/internal/ratelimit"
)

// Client defines the interface for reading from the flag API.
// This interface allows for easy mocking in tests.
type Client interface {
	// Get issues a GET for path (relative to /api/v2/, query string allowed).
	// A non-nil error means no usable response was obtained: the server was
	// unreachable or the context ended. Every status, success or not, is
	// returned in the Response.
	Get(ctx context.Context, path string) (*Response, error)
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Success reports whether the server accepted the request. Anything above
// 201 is an application error.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 201
}

// StatusError converts an unsuccessful response into an error that carries
// its status and body.
func (r *Response) StatusError(path string) error {
	return &porterrors.StatusError{Path: path, StatusCode: r.StatusCode, Body: string(r.Body)}
}

// RetryConfig configures the retry behavior for transient failures.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int
	// InitialBackoff is the initial backoff duration
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration
	MaxBackoff time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (rc *RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rc.InitialBackoff
	bo.MaxInterval = rc.MaxBackoff
	bo.Multiplier = rc.BackoffMultiplier
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(rc.MaxRetries)), ctx)
}

// HTTPClient is the production Client. Each attempt, retries included,
// acquires the shared gate first and reports the response headers back to it.
type HTTPClient struct {
	creds        Credentials
	http         *http.Client
	gate         *ratelimit.Gate
	retry        *RetryConfig
	limitRetries int
	autoWait     bool
	logger       *zap.Logger
	inspector    apierror.Inspector

	requests atomic.Int64
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client. Its transport is
// wrapped, not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetryConfig sets the backoff used for network errors and 502/503/504.
func WithRetryConfig(rc *RetryConfig) Option {
	return func(c *HTTPClient) {
		if rc != nil {
			c.retry = rc
		}
	}
}

// WithRateLimitRetries sets how many times a 429 is retried after the gate's pause.
func WithRateLimitRetries(n int) Option {
	return func(c *HTTPClient) {
		if n >= 0 {
			c.limitRetries = n
		}
	}
}

// WithAutoWait controls whether a 429 is waited out and retried. When false,
// a 429 fails the request with ErrRateLimit.
func WithAutoWait(enabled bool) Option {
	return func(c *HTTPClient) {
		c.autoWait = enabled
	}
}

// WithLogger sets the logger for retry messages.
func WithLogger(logger *zap.Logger) Option {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an HTTPClient. A nil gate means no throttling.
func NewClient(creds Credentials, gate *ratelimit.Gate, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		creds:        creds,
		http:         &http.Client{Timeout: 30 * time.Second},
		gate:         gate,
		retry:        DefaultRetryConfig(),
		limitRetries: 3,
		autoWait:     true,
		logger:       zap.NewNop(),
		inspector:    apierror.NewInspector(),
	}
	for _, opt := range opts {
		opt(c)
	}

	wrapped := *c.http
	wrapped.Transport = newHeaderTransport(c.http.Transport)
	c.http = &wrapped
	return c
}

// RequestCount returns how many requests reached the server, retries included.
func (c *HTTPClient) RequestCount() int64 {
	return c.requests.Load()
}

// Get implements Client.
func (c *HTTPClient) Get(ctx context.Context, path string) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := c.getWithRetry(ctx, path)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if !c.autoWait {
				return nil, fmt.Errorf("GET %s: %w", path, porterrors.ErrRateLimit)
			}
			if attempt > c.limitRetries {
				c.logger.Warn("Rate limit retries exhausted",
					zap.String("path", path),
					zap.Int("attempts", attempt))
				return resp, nil
			}
			c.logger.Warn("Rate limited, retrying",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.limitRetries))
			continue
		}

		return resp, nil
	}
}

// getWithRetry performs one logical request, retrying network errors and
// gateway statuses with exponential backoff. After the retries are spent a
// gateway status is returned as a response; a network error becomes
// ErrTransport.
func (c *HTTPClient) getWithRetry(ctx context.Context, path string) (*Response, error) {
	req, err := BuildRequest(ctx, c.creds, path)
	if err != nil {
		return nil, err
	}

	var (
		last     *Response
		attempts int
	)

	op := func() error {
		attempts++
		resp, err := c.do(ctx, req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if c.inspector.IsNetworkError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		last = resp
		if isRetryableStatusCode(resp.StatusCode) {
			return fmt.Errorf("received status %d", resp.StatusCode)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Request failed, retrying",
			zap.String("path", path),
			zap.Error(apierror.WithRetryInfo(err, attempts, c.retry.MaxRetries+1)),
			zap.Duration("backoff", wait))
	}

	err = backoff.RetryNotify(op, c.retry.newBackOff(ctx), notify)
	if err == nil {
		return last, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if last != nil && isRetryableStatusCode(last.StatusCode) {
		return last, nil
	}
	return nil, apierror.WithUserAction(
		apierror.WithRetryInfo(fmt.Errorf("GET %s: %w: %w", path, porterrors.ErrTransport, err), attempts, c.retry.MaxRetries+1),
		"Check your network connection and the api.base_url setting")
}

// do makes a single attempt: acquire the gate, send, read the body, and
// report the headers back to the gate.
func (c *HTTPClient) do(ctx context.Context, req *http.Request) (*Response, error) {
	if c.gate != nil {
		if err := c.gate.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	c.requests.Add(1)
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if c.gate != nil {
		c.gate.Observe(httpResp)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// IsTransportError reports whether err means the flag API could not be reached.
func IsTransportError(err error) bool {
	return errors.Is(err, porterrors.ErrTransport)
}
