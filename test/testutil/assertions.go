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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// AssertExportTree checks that projectDir holds a complete export: the
// project document, one segment document per environment, the flag list in
// the given order and one definition per flag.
func AssertExportTree(t *testing.T, projectDir string, envs, flagKeys []string) {
	t.Helper()

	AssertFileExists(t, filepath.Join(projectDir, "project.json"))
	for _, env := range envs {
		AssertFileExists(t, filepath.Join(projectDir, "segment-"+env+".json"))
	}

	var listed []string
	ReadJSON(t, filepath.Join(projectDir, "flags.json"), &listed)
	if strings.Join(listed, ",") != strings.Join(flagKeys, ",") {
		t.Errorf("flags.json = %v, want %v", listed, flagKeys)
	}

	for _, key := range flagKeys {
		path := filepath.Join(projectDir, "flags", key+".json")
		AssertFileExists(t, path)
		if got := ReadFlagField(t, path, "key"); got != key {
			t.Errorf("%s: key = %q, want %q", path, got, key)
		}
	}

	entries, err := os.ReadDir(filepath.Join(projectDir, "flags"))
	if err != nil {
		t.Fatalf("Failed to read flags dir: %v", err)
	}
	if len(entries) != len(flagKeys) {
		t.Errorf("flags dir has %d entries, want %d", len(entries), len(flagKeys))
	}
}

// AssertMetadataFile validates the newest export metadata file in dir and
// returns its decoded contents.
func AssertMetadataFile(t *testing.T, dir, project, status string) map[string]interface{} {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "export-metadata-*.json"))
	if err != nil {
		t.Fatalf("Failed to glob metadata files: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("No metadata file found")
	}
	sort.Strings(matches)

	var metadata map[string]interface{}
	ReadJSON(t, matches[len(matches)-1], &metadata)

	for _, field := range []string{"flagport_version", "export_id", "parameters", "results"} {
		if _, ok := metadata[field]; !ok {
			t.Errorf("Missing required metadata field: %s", field)
		}
	}

	params, _ := metadata["parameters"].(map[string]interface{})
	if params["project"] != project {
		t.Errorf("metadata project = %v, want %q", params["project"], project)
	}
	results, _ := metadata["results"].(map[string]interface{})
	if results["status"] != status {
		t.Errorf("metadata status = %v, want %q", results["status"], status)
	}

	return metadata
}

// AssertContainsString checks if a string contains a substring
func AssertContainsString(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("Expected string to contain %q, got: %s", needle, haystack)
	}
}

// AssertNotContainsString checks if a string does not contain a substring
func AssertNotContainsString(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Errorf("Expected string to NOT contain %q, got: %s", needle, haystack)
	}
}

// AssertErrorContains checks if an error contains expected text
func AssertErrorContains(t *testing.T, err error, expected string) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), expected) {
		t.Errorf("Expected error to contain %q, got: %v", expected, err)
	}
}
