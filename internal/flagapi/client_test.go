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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
	"github.com/sirseerhq/flagport/internal/ratelimit"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func testGate() *ratelimit.Gate {
	return ratelimit.New(ratelimit.Config{
		MaxRequests:   1000,
		Period:        time.Second,
		FallbackDelay: 10 * time.Millisecond,
	})
}

func newTestClient(baseURL string, opts ...Option) *HTTPClient {
	opts = append([]Option{WithRetryConfig(fastRetry())}, opts...)
	return NewClient(Credentials{BaseURL: baseURL, APIKey: "test-key"}, testGate(), opts...)
}

func TestClientGetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/flags/default" {
			t.Errorf("path = %s, want /api/v2/flags/default", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		if got := r.Header.Get("Authorization"); got != "test-key" {
			t.Errorf("Authorization = %q, want test-key", got)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "flagport/") {
			t.Errorf("User-Agent = %q, want flagport/ prefix", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Get(context.Background(), "flags/default?summary=true&limit=5&offset=0")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !resp.Success() {
		t.Errorf("Success() = false for status %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"items":[]}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if client.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1", client.RequestCount())
	}
}

func TestClientApplicationErrorIsAResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"boom"}`)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Get(context.Background(), "flags/default/broken")
	if err != nil {
		t.Fatalf("Get() error = %v, want response", err)
	}
	if resp.Success() {
		t.Fatal("Success() = true for 500")
	}

	statusErr := resp.StatusError("flags/default/broken")
	var se *porterrors.StatusError
	if !errors.As(statusErr, &se) {
		t.Fatalf("StatusError() = %T, want *StatusError", statusErr)
	}
	if se.StatusCode != 500 || se.Body != `{"message":"boom"}` {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestClientRetriesGatewayErrors(t *testing.T) {
	tests := []struct {
		name       string
		failures   int32
		wantStatus int
		wantHits   int32
	}{
		{name: "recovers after one 503", failures: 1, wantStatus: 200, wantHits: 2},
		{name: "recovers on last retry", failures: 2, wantStatus: 200, wantHits: 3},
		{name: "gives up and returns the status", failures: 10, wantStatus: 503, wantHits: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if hits.Add(1) <= tt.failures {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				_, _ = io.WriteString(w, `{}`)
			}))
			defer server.Close()

			resp, err := newTestClient(server.URL).Get(context.Background(), "projects/p")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if hits.Load() != tt.wantHits {
				t.Errorf("server hits = %d, want %d", hits.Load(), tt.wantHits)
			}
		})
	}
}

func TestClientUnreachableIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Get(context.Background(), "projects/p")
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if !errors.Is(err, porterrors.ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
	if !IsTransportError(err) {
		t.Error("IsTransportError() = false")
	}
	if strings.Contains(err.Error(), "test-key") {
		t.Errorf("error leaks API key: %v", err)
	}
}

func TestClientDroppedConnection(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("server does not support hijacking")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Get(context.Background(), "flags/p/f")
	if !errors.Is(err, porterrors.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if hits.Load() < 3 {
		t.Errorf("server hits = %d, want at least 3 (initial + 2 retries)", hits.Load())
	}
}

func TestClientRateLimited(t *testing.T) {
	t.Run("waits and retries", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = io.WriteString(w, `{}`)
		}))
		defer server.Close()

		resp, err := newTestClient(server.URL).Get(context.Background(), "projects/p")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if resp.StatusCode != 200 || hits.Load() != 2 {
			t.Errorf("status = %d, hits = %d; want 200 after 2 hits", resp.StatusCode, hits.Load())
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		resp, err := newTestClient(server.URL, WithRateLimitRetries(2)).Get(context.Background(), "projects/p")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", resp.StatusCode)
		}
		if hits.Load() != 3 {
			t.Errorf("hits = %d, want 3", hits.Load())
		}
	})

	t.Run("auto wait disabled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, WithAutoWait(false)).Get(context.Background(), "projects/p")
		if !errors.Is(err, porterrors.ErrRateLimit) {
			t.Errorf("error = %v, want ErrRateLimit", err)
		}
	})
}

func TestClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":"unauthorized","message":"Invalid access token"}`)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Get(context.Background(), "flags/p/my-flag")
	if err != nil {
		t.Fatalf("Get() error = %v, want the 401 as a response", err)
	}
	if resp.StatusCode != http.StatusUnauthorized || resp.Success() {
		t.Errorf("StatusCode = %d, Success() = %v", resp.StatusCode, resp.Success())
	}
	if !strings.Contains(string(resp.Body), "Invalid access token") {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestClientContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).Get(ctx, "projects/p")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestLimitedReader(t *testing.T) {
	lr := &limitedReader{
		ReadCloser: io.NopCloser(strings.NewReader(strings.Repeat("x", 100))),
		limit:      10,
	}
	_, err := io.ReadAll(lr)
	if err == nil || !strings.Contains(err.Error(), "exceeded limit of 10 bytes") {
		t.Errorf("ReadAll() error = %v, want size limit error", err)
	}
}
