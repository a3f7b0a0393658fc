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

// Package ratelimit implements the request gate shared by every call the
// exporter makes to the flag API.
//
// A Gate enforces a hard ceiling of MaxRequests per sliding Period, an
// optional minimum spacing between requests (golang.org/x/time/rate), and
// pauses advertised by the server through rate-limit response headers.
// When those headers are missing or unparseable the gate falls back to a
// fixed conservative delay instead of guessing.
//
// Typical usage:
//
//	gate := ratelimit.New(ratelimit.Config{MaxRequests: 5, Period: time.Second})
//	if err := gate.Acquire(ctx); err != nil {
//	    return err
//	}
//	resp, err := httpClient.Do(req)
//	if err == nil {
//	    gate.Observe(resp)
//	}
package ratelimit
