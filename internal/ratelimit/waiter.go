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
	"time"

	"go.uber.org/zap"
)

// progressThreshold is the shortest wait worth telling the operator about.
// Routine spacing waits stay silent.
const progressThreshold = time.Second

// Waiter sleeps on behalf of the gate, honouring context cancellation.
type Waiter struct {
	showProgress bool
	logger       *zap.Logger
}

// NewWaiter creates a Waiter. A nil logger discards progress messages.
func NewWaiter(showProgress bool, logger *zap.Logger) *Waiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waiter{
		showProgress: showProgress,
		logger:       logger,
	}
}

// Wait blocks for d or until ctx is done.
func (w *Waiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if w.showProgress && d >= progressThreshold {
		w.logger.Warn("Rate limit reached, waiting",
			zap.Duration("wait", d.Round(100*time.Millisecond)),
			zap.Time("resume_at", time.Now().Add(d)))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
