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

package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// CreateTempFile creates a temporary file with the given content
func CreateTempFile(t *testing.T, dir, pattern, content string) string {
	t.Helper()

	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := file.WriteString(content); err != nil {
		file.Close()
		t.Fatalf("Failed to write to temp file: %v", err)
	}

	if err := file.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	t.Cleanup(func() {
		os.Remove(file.Name())
	})

	return file.Name()
}

// WriteJSON writes a struct as JSON to a file
func WriteJSON(t *testing.T, path string, data interface{}) {
	t.Helper()

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal JSON: %v", err)
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("Failed to write JSON file: %v", err)
	}
}

// ReadJSON reads JSON from a file into a struct
func ReadJSON(t *testing.T, path string, v interface{}) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
}

// AssertFileExists checks that a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks that a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Expected file to not exist: %s", path)
	}
}

// CreateStateDir creates a standard state directory structure for tests
func CreateStateDir(t *testing.T, baseDir string) string {
	t.Helper()

	stateDir := filepath.Join(baseDir, ".flagport", "state")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatalf("Failed to create state dir: %v", err)
	}

	return stateDir
}

// WriteFlagFile writes a flag definition as <dir>/<key>.json with the
// given maintainer. An empty maintainerID leaves the field out.
func WriteFlagFile(t *testing.T, dir, key, maintainerID string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create flags dir: %v", err)
	}
	path := filepath.Join(dir, key+".json")
	WriteJSON(t, path, FlagDocument(key, maintainerID))
	return path
}

// WriteMapping writes a maintainer mapping file and returns its path.
func WriteMapping(t *testing.T, dir string, mapping map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, "mapping.json")
	WriteJSON(t, path, mapping)
	return path
}

// WriteConfig writes a config file pointing at baseURL with rate limiting
// loose enough for tests. extra is appended verbatim.
func WriteConfig(t *testing.T, dir, baseURL, extra string) string {
	t.Helper()

	content := fmt.Sprintf(`api:
  base_url: %s
  timeout: 5s
rate_limit:
  max_requests: 100
  period: 1s
  min_interval: 0s
  fallback_delay: 10ms
  max_retries: 3
  auto_wait: true
  show_progress: false
log:
  level: debug
%s`, baseURL, extra)

	path := filepath.Join(dir, "flagport.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// ReadFlagField returns a top-level string field of an exported flag file.
func ReadFlagField(t *testing.T, path, field string) string {
	t.Helper()

	var doc map[string]any
	ReadJSON(t, path, &doc)
	s, _ := doc[field].(string)
	return s
}
