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

package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultFallbackDelay = 2 * time.Second

	// maxPause bounds a server-advertised pause so a skewed clock or a bogus
	// reset header cannot stall an export indefinitely.
	maxPause = time.Minute
)

// Config sets the gate's limits.
type Config struct {
	// MaxRequests is the ceiling of grants within any window of Period.
	MaxRequests int
	Period      time.Duration

	// MinInterval spaces consecutive grants. Zero disables spacing.
	MinInterval time.Duration

	// FallbackDelay is the pause applied when the server signals a limit
	// without saying when it resets.
	FallbackDelay time.Duration

	ShowProgress bool
}

// Gate throttles callers so that the flag API's rate limit is respected.
// It is safe for concurrent use.
type Gate struct {
	max      int
	period   time.Duration
	fallback time.Duration
	spacing  *rate.Limiter
	detector *Detector
	waiter   *Waiter
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	grants     []time.Time
	pauseUntil time.Time

	// onGrant is called with every grant time while mu is held. Tests use it.
	onGrant func(time.Time)
}

// Option customizes a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for rate-limit messages.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a Gate. Non-positive MaxRequests or Period fall back to one
// request per FallbackDelay, which is slow but never exceeds any sane limit.
func New(cfg Config, opts ...Option) *Gate {
	fallback := cfg.FallbackDelay
	if fallback <= 0 {
		fallback = defaultFallbackDelay
	}
	max, period := cfg.MaxRequests, cfg.Period
	if max <= 0 || period <= 0 {
		max, period = 1, fallback
	}

	g := &Gate{
		max:      max,
		period:   period,
		fallback: fallback,
		detector: NewDetector(),
		logger:   zap.NewNop(),
		now:      time.Now,
		grants:   make([]time.Time, 0, max),
	}
	if cfg.MinInterval > 0 {
		g.spacing = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	for _, opt := range opts {
		opt(g)
	}
	g.waiter = NewWaiter(cfg.ShowProgress, g.logger)
	return g
}

// Acquire blocks until a request may be issued without exceeding the
// ceiling or ignoring a server-advertised pause. It returns ctx.Err() if
// the context ends first; no grant is consumed in that case.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.spacing != nil {
		if err := g.spacing.Wait(ctx); err != nil {
			return err
		}
	}

	for {
		g.mu.Lock()
		wait := g.reserveLocked(g.now())
		g.mu.Unlock()

		if wait <= 0 {
			return nil
		}
		if err := g.waiter.Wait(ctx, wait); err != nil {
			return err
		}
	}
}

// reserveLocked records a grant at now and returns zero, or returns how
// long the caller must wait before trying again.
func (g *Gate) reserveLocked(now time.Time) time.Duration {
	if now.Before(g.pauseUntil) {
		return g.pauseUntil.Sub(now)
	}

	cutoff := now.Add(-g.period)
	expired := 0
	for expired < len(g.grants) && !g.grants[expired].After(cutoff) {
		expired++
	}
	if expired > 0 {
		g.grants = append(g.grants[:0], g.grants[expired:]...)
	}

	if len(g.grants) >= g.max {
		return g.grants[0].Add(g.period).Sub(now)
	}

	g.grants = append(g.grants, now)
	if g.onGrant != nil {
		g.onGrant(now)
	}
	return 0
}

// Observe feeds a response's rate-limit headers back into the gate and
// returns what was detected. Exhausted budgets and 429s pause every caller
// until the advertised reset; without a usable reset the fallback delay
// applies.
func (g *Gate) Observe(resp *http.Response) Info {
	info := g.detector.Detect(resp)

	exhausted := info.Remaining == 0
	if !info.Limited && !exhausted {
		return info
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	until := g.resumeTime(now, info)
	if until.After(g.pauseUntil) {
		g.pauseUntil = until
		g.logger.Debug("Rate limit pause",
			zap.Bool("limited", info.Limited),
			zap.Int("remaining", info.Remaining),
			zap.Duration("pause", until.Sub(now)))
	}
	return info
}

// Pause delays all callers by at least d. Used when a request must be
// retried and the response offered no timing hint of its own.
func (g *Gate) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	until := g.now().Add(d)
	if until.After(g.pauseUntil) {
		g.pauseUntil = until
	}
}

// FallbackDelay returns the conservative delay used when the server gives
// no timing information.
func (g *Gate) FallbackDelay() time.Duration {
	return g.fallback
}

func (g *Gate) resumeTime(now time.Time, info Info) time.Time {
	var until time.Time
	switch {
	case info.Reset.After(now):
		until = info.Reset
	case info.RetryAfter > 0:
		until = now.Add(info.RetryAfter)
	default:
		until = now.Add(g.fallback)
	}
	if until.Sub(now) > maxPause {
		until = now.Add(maxPause)
	}
	return until
}
