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

// Package metadata types define the structures used for tracking and
// persisting information about export runs.
package metadata

import (
	"time"
)

// Export outcomes recorded in ExportResults.Status.
const (
	StatusComplete = "complete"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
)

// ExportMetadata is the record of a single export run: what was asked for
// and what ended up on disk.
type ExportMetadata struct {
	FlagportVersion string        `json:"flagport_version"`
	ExportID        string        `json:"export_id"`
	Parameters      ExportParams  `json:"parameters"`
	Results         ExportResults `json:"results"`
}

// ExportParams captures the inputs of an export run.
type ExportParams struct {
	Project     string `json:"project"`
	BaseURL     string `json:"base_url"`
	DataDir     string `json:"data_dir"`
	PageSize    int    `json:"page_size"`
	Concurrency int    `json:"concurrency"`
	OnError     string `json:"on_error"`
}

// ExportResults contains the counts and failures of an export run.
type ExportResults struct {
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	Environments    int       `json:"environments"`
	SegmentsWritten int       `json:"segments_written"`
	FailedSegments  []string  `json:"failed_segments,omitempty"`
	FlagsListed     int       `json:"flags_listed"`
	ListingComplete bool      `json:"listing_complete"`
	FlagsWritten    int       `json:"flags_written"`
	FailedFlags     []string  `json:"failed_flags,omitempty"`
	APICallCount    int64     `json:"api_calls_made"`
	Duration        string    `json:"export_duration"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
}
