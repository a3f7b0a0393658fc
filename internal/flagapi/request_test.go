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
	"strings"
	"testing"
)

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		path    string
		wantURL string
		wantErr bool
	}{
		{
			name:    "plain path",
			baseURL: "https://app.launchdarkly.com",
			path:    "projects/default",
			wantURL: "https://app.launchdarkly.com/api/v2/projects/default",
		},
		{
			name:    "query preserved",
			baseURL: "https://app.launchdarkly.com/",
			path:    "flags/default?summary=true&limit=5&offset=10",
			wantURL: "https://app.launchdarkly.com/api/v2/flags/default?summary=true&limit=5&offset=10",
		},
		{
			name:    "leading slash in path",
			baseURL: "http://localhost:8080",
			path:    "/segments/default/production?limit=50",
			wantURL: "http://localhost:8080/api/v2/segments/default/production?limit=50",
		},
		{
			name:    "base with path prefix",
			baseURL: "https://proxy.example.com/ld",
			path:    "flags/p/my-flag",
			wantURL: "https://proxy.example.com/ld/api/v2/flags/p/my-flag",
		},
		{
			name:    "escaped slash stays escaped",
			baseURL: "https://app.launchdarkly.com",
			path:    "flags/p/team%2Fcheckout",
			wantURL: "https://app.launchdarkly.com/api/v2/flags/p/team%2Fcheckout",
		},
		{
			name:    "escaped slash under base prefix",
			baseURL: "https://proxy.example.com/ld/",
			path:    "flags/p/a%2Fb?summary=true",
			wantURL: "https://proxy.example.com/ld/api/v2/flags/p/a%2Fb?summary=true",
		},
		{
			name:    "empty base",
			baseURL: "",
			path:    "projects/default",
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			baseURL: "ftp://example.com",
			path:    "projects/default",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := Credentials{BaseURL: tt.baseURL, APIKey: "api-secret-key"}
			req, err := BuildRequest(context.Background(), creds, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if strings.Contains(err.Error(), "api-secret-key") {
					t.Errorf("error leaks API key: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Method != http.MethodGet {
				t.Errorf("Method = %s, want GET", req.Method)
			}
			if got := req.URL.String(); got != tt.wantURL {
				t.Errorf("URL = %s, want %s", got, tt.wantURL)
			}
			if got := req.Header.Get("Authorization"); got != "api-secret-key" {
				t.Errorf("Authorization = %q, want raw key", got)
			}
		})
	}
}

func TestCredentialsRedacted(t *testing.T) {
	creds := Credentials{BaseURL: "https://app.launchdarkly.com", APIKey: "api-secret-key"}

	for _, s := range []string{
		creds.String(),
		fmt.Sprintf("%v", creds),
		fmt.Sprintf("%+v", creds),
		fmt.Sprintf("%#v", creds),
	} {
		if strings.Contains(s, "api-secret-key") {
			t.Errorf("formatted credentials leak key: %s", s)
		}
		if !strings.Contains(s, "https://app.launchdarkly.com") {
			t.Errorf("formatted credentials lost base URL: %s", s)
		}
	}

	if !strings.Contains(Credentials{}.String(), "<empty>") {
		t.Error("empty key should be reported as empty")
	}
}
