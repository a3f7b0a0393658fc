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

// Package metadata provides functionality for tracking and persisting metadata
// about export runs. It records how many environments, segments and flags
// were exported, which ones failed, and how many API calls the run made.
//
// Metadata is saved as JSON files in the state directory, one per run, so
// that later commands (and external tools) can tell whether the data on
// disk came from a complete export.
package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirseerhq/flagport/internal/store"
)

// Tracker collects statistics during an export run and generates metadata.
// Create one at the start of each run. All methods are safe for concurrent use.
type Tracker struct {
	startTime time.Time

	mu              sync.Mutex
	environments    int
	segmentsWritten int
	failedSegments  []string
	flagsListed     int
	listingComplete bool
	flagsWritten    int
	failedFlags     []string
	apiCallCount    int64
}

// New creates a new metadata tracker and initializes it with the current time.
func New() *Tracker {
	return &Tracker{
		startTime:       time.Now(),
		listingComplete: true,
	}
}

// SetEnvironments records how many environments the project has.
func (t *Tracker) SetEnvironments(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.environments = n
}

// SegmentWritten records a persisted segment listing.
func (t *Tracker) SegmentWritten() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segmentsWritten++
}

// SegmentsFailed records environments whose segment listing was not exported.
func (t *Tracker) SegmentsFailed(envs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failedSegments = append(t.failedSegments, envs...)
}

// SetFlagsListed records the size of the flag key list and whether the
// listing reached its last page.
func (t *Tracker) SetFlagsListed(n int, complete bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flagsListed = n
	t.listingComplete = complete
}

// FlagWritten records a persisted flag document.
func (t *Tracker) FlagWritten() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flagsWritten++
}

// FlagsFailed records flags whose document was not exported.
func (t *Tracker) FlagsFailed(keys ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failedFlags = append(t.failedFlags, keys...)
}

// SetAPICallCount records how many requests the run sent.
func (t *Tracker) SetAPICallCount(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apiCallCount = n
}

// GenerateMetadata creates the record of the run. runErr is the error the
// run ended with, if any; it marks the run as failed.
func (t *Tracker) GenerateMetadata(version string, params ExportParams, runErr error) *ExportMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()

	completedAt := time.Now()

	failedSegments := append([]string(nil), t.failedSegments...)
	failedFlags := append([]string(nil), t.failedFlags...)
	sort.Strings(failedSegments)
	sort.Strings(failedFlags)

	status := StatusComplete
	if len(failedSegments) > 0 || len(failedFlags) > 0 || !t.listingComplete {
		status = StatusPartial
	}
	var errMsg string
	if runErr != nil {
		status = StatusFailed
		errMsg = runErr.Error()
	}

	return &ExportMetadata{
		FlagportVersion: version,
		ExportID:        fmt.Sprintf("%s-%d", params.Project, t.startTime.Unix()),
		Parameters:      params,
		Results: ExportResults{
			Status:          status,
			Error:           errMsg,
			Environments:    t.environments,
			SegmentsWritten: t.segmentsWritten,
			FailedSegments:  failedSegments,
			FlagsListed:     t.flagsListed,
			ListingComplete: t.listingComplete,
			FlagsWritten:    t.flagsWritten,
			FailedFlags:     failedFlags,
			APICallCount:    t.apiCallCount,
			Duration:        completedAt.Sub(t.startTime).Round(time.Millisecond).String(),
			StartedAt:       t.startTime,
			CompletedAt:     completedAt,
		},
	}
}

// SaveMetadata persists an ExportMetadata record to a JSON file in stateDir.
// The file is written atomically and is named export-metadata-{timestamp}.json.
// It returns the path written.
func SaveMetadata(metadata *ExportMetadata, stateDir string) (string, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	data = append(data, '\n')

	filename := fmt.Sprintf("export-metadata-%d.json", metadata.Results.StartedAt.Unix())
	path := filepath.Join(stateDir, filename)
	if err := store.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to save metadata file: %w", err)
	}
	return path, nil
}

// LoadLatestMetadata finds the most recent export metadata for project in
// stateDir, judged by completion time. Unreadable files are skipped.
//
// Returns nil if no metadata exists for the project.
func LoadLatestMetadata(stateDir, project string) (*ExportMetadata, error) {
	pattern := filepath.Join(stateDir, "export-metadata-*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata files: %w", err)
	}

	var latest *ExportMetadata
	for _, file := range files {
		data, readErr := os.ReadFile(file)
		if readErr != nil {
			continue
		}
		var md ExportMetadata
		if json.Unmarshal(data, &md) != nil {
			continue
		}
		if md.Parameters.Project != project {
			continue
		}
		if latest == nil || md.Results.CompletedAt.After(latest.Results.CompletedAt) {
			latest = &md
		}
	}
	return latest, nil
}

// WriteMetadataToWriter serializes metadata to JSON and writes it to the
// provided io.Writer. The output is formatted with indentation for readability.
func WriteMetadataToWriter(metadata *ExportMetadata, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}
