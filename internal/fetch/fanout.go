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

package fetch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sirseerhq/flagport/internal/flagapi"
)

// DefaultConcurrency is used when a non-positive concurrency is configured.
const DefaultConcurrency = 4

// FanOut runs fn for every key with at most concurrency calls in flight
// and waits for all of them. The first error cancels the context passed to
// the remaining calls, stops scheduling new ones, and is returned.
func FanOut(ctx context.Context, keys []string, concurrency int, fn func(ctx context.Context, index int, key string) error) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, key := range keys {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, key)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Handler receives the body of each successfully fetched item.
type Handler func(ctx context.Context, key string, body []byte) error

// Summary reports what a Fetcher run did.
type Summary struct {
	Requested int
	Succeeded int

	// Failed lists keys whose request ended in an application error,
	// sorted.
	Failed []string
}

// Fetcher retrieves one document per key.
type Fetcher struct {
	client      flagapi.Client
	concurrency int
	policy      Policy
	label       string
	logger      *zap.Logger
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchPolicy sets how application errors are handled.
func WithFetchPolicy(policy Policy) FetcherOption {
	return func(f *Fetcher) {
		f.policy = policy
	}
}

// WithItemLabel names the fetched items in progress messages.
func WithItemLabel(label string) FetcherOption {
	return func(f *Fetcher) {
		f.label = label
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher with the given concurrency bound.
func NewFetcher(client flagapi.Client, concurrency int, opts ...FetcherOption) *Fetcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	f := &Fetcher{
		client:      client,
		concurrency: concurrency,
		policy:      Continue,
		label:       "item",
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll requests pathFor(key) for every key and passes each successful
// body to handle exactly once. Application errors are logged with status
// and body; under Continue the key is recorded as failed and the rest
// proceed, under FailFast the run stops. Transport failures, context
// cancellation and handler errors always stop the run.
func (f *Fetcher) FetchAll(ctx context.Context, keys []string, pathFor func(key string) string, handle Handler) (*Summary, error) {
	var (
		mu        sync.Mutex
		failed    []string
		succeeded atomic.Int64
		started   atomic.Int64
	)
	total := len(keys)

	err := FanOut(ctx, keys, f.concurrency, func(ctx context.Context, _ int, key string) error {
		n := started.Add(1)
		f.logger.Info(fmt.Sprintf("Getting %s %d of %d", f.label, n, total), zap.String("key", key))

		path := pathFor(key)
		resp, err := f.client.Get(ctx, path)
		if err != nil {
			return fmt.Errorf("failed getting %s %q: %w", f.label, key, err)
		}

		if !resp.Success() {
			f.logger.Error(fmt.Sprintf("Failed getting %s", f.label),
				zap.String("key", key),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", resp.Body))
			if f.policy == FailFast {
				return fmt.Errorf("failed getting %s %q: %w", f.label, key, resp.StatusError(path))
			}
			mu.Lock()
			failed = append(failed, key)
			mu.Unlock()
			return nil
		}

		if err := handle(ctx, key, resp.Body); err != nil {
			return fmt.Errorf("handling %s %q: %w", f.label, key, err)
		}
		succeeded.Add(1)
		return nil
	})

	sort.Strings(failed)
	summary := &Summary{
		Requested: int(started.Load()),
		Succeeded: int(succeeded.Load()),
		Failed:    failed,
	}
	return summary, err
}
