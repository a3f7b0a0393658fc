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

// Package flagapi talks to a LaunchDarkly-compatible flag management REST API.
//
// Every request is a GET against <base>/api/v2/<path>, authorized with the
// raw API key in the Authorization header. Requests pass through a shared
// ratelimit.Gate so that listing, project, segment and flag detail calls
// together respect the server's limits.
//
// The package includes:
//   - Credentials and BuildRequest, a pure request constructor
//   - HTTPClient, which adds throttling, retries and response size limits
//   - MockClient for tests
//
// Basic usage:
//
//	gate := ratelimit.New(ratelimit.Config{MaxRequests: 5, Period: time.Second})
//	client := flagapi.NewClient(flagapi.Credentials{
//	    BaseURL: "https://app.launchdarkly.com",
//	    APIKey:  os.Getenv("LD_API_KEY"),
//	}, gate)
//	resp, err := client.Get(ctx, "projects/default?expand=environments")
//	if err != nil {
//	    // transport failure, fatal
//	}
//	if !resp.Success() {
//	    // application error, resp.Body says why
//	}
package flagapi
