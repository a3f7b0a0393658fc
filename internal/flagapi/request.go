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
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// APIPrefix is the path prefix of every flag API endpoint.
const APIPrefix = "/api/v2/"

// Credentials identify the caller to the flag API.
type Credentials struct {
	BaseURL string
	APIKey  string
}

// String never reveals the API key.
func (c Credentials) String() string {
	key := "<empty>"
	if c.APIKey != "" {
		key = "<redacted>"
	}
	return fmt.Sprintf("Credentials{BaseURL: %s, APIKey: %s}", c.BaseURL, key)
}

// GoString keeps %#v from leaking the key.
func (c Credentials) GoString() string {
	return c.String()
}

// BuildRequest returns a GET request for path relative to the API prefix.
// path may carry a query string. It performs no I/O.
func BuildRequest(ctx context.Context, creds Credentials, path string) (*http.Request, error) {
	if creds.BaseURL == "" {
		return nil, fmt.Errorf("build request: base URL is empty")
	}
	base, err := url.Parse(strings.TrimRight(creds.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("build request: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("build request: base URL %q must be http or https", creds.BaseURL)
	}

	rel, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("build request: invalid path %q: %w", path, err)
	}

	target := *base
	target.Path = base.Path + APIPrefix + rel.Path
	target.RawPath = base.EscapedPath() + APIPrefix + rel.EscapedPath()
	target.RawQuery = rel.RawQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", creds.APIKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
