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
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names used by the flag API to advertise its rate limits.
const (
	HeaderGlobalRemaining = "X-Ratelimit-Global-Remaining"
	HeaderRouteRemaining  = "X-Ratelimit-Route-Remaining"
	HeaderReset           = "X-Ratelimit-Reset"
	HeaderRetryAfter      = "Retry-After"
)

// Info is what a single response says about the rate limit.
type Info struct {
	// Limited is true for 429 responses.
	Limited bool

	// Remaining is the smaller of the route and global budgets, or -1 when
	// neither header was present or parseable.
	Remaining int

	// Reset is when the budget refills. Zero when unknown.
	Reset time.Time

	// RetryAfter comes from the Retry-After header. Zero when unknown.
	RetryAfter time.Duration
}

// Known reports whether the response carried any usable rate-limit data.
func (i Info) Known() bool {
	return i.Remaining >= 0 || !i.Reset.IsZero() || i.RetryAfter > 0
}

// Detector extracts rate-limit information from responses.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// IsRateLimited reports whether resp is a 429.
func (d *Detector) IsRateLimited(resp *http.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusTooManyRequests
}

// Detect parses the rate-limit headers of resp. Unparseable values are
// treated as absent.
func (d *Detector) Detect(resp *http.Response) Info {
	info := Info{Remaining: -1}
	if resp == nil {
		return info
	}
	info.Limited = d.IsRateLimited(resp)

	for _, name := range []string{HeaderRouteRemaining, HeaderGlobalRemaining} {
		n, ok := parseInt(resp.Header.Get(name))
		if !ok || n < 0 {
			continue
		}
		if info.Remaining < 0 || int(n) < info.Remaining {
			info.Remaining = int(n)
		}
	}

	if n, ok := parseInt(resp.Header.Get(HeaderReset)); ok && n > 0 {
		info.Reset = epochToTime(n)
	}

	if n, ok := parseInt(resp.Header.Get(HeaderRetryAfter)); ok && n > 0 {
		info.RetryAfter = time.Duration(n) * time.Second
	}

	return info
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// epochToTime accepts the reset header in milliseconds (what the flag API
// sends) and tolerates seconds.
func epochToTime(n int64) time.Time {
	if n < 1e11 {
		return time.Unix(n, 0)
	}
	return time.UnixMilli(n)
}
