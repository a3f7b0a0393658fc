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

// Package config types define the configuration structures used throughout
// flagport. These types represent settings that can be loaded from
// YAML configuration files, environment variables, or command-line flags.
package config

import "time"

// Error policies accepted by ExportConfig.OnError.
const (
	OnErrorContinue = "continue"
	OnErrorFailFast = "fail-fast"
)

// Config represents the complete configuration for flagport.
// It consolidates settings from various sources and provides a unified
// interface for accessing configuration values throughout the application.
type Config struct {
	API       APIConfig                `yaml:"api"`
	Export    ExportConfig             `yaml:"export"`
	Projects  map[string]ProjectConfig `yaml:"projects"`
	RateLimit RateLimitConfig          `yaml:"rate_limit"`
	Log       LogConfig                `yaml:"log"`
}

// APIConfig describes where the flag-management API lives and how to
// find the API key. The key itself is never stored in the config file.
type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	TokenEnv string        `yaml:"token_env"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ExportConfig contains default settings for export and rewrite runs
// unless overridden by project-specific settings or command-line flags.
type ExportConfig struct {
	// DataDir is the root of the exported tree; each project gets <DataDir>/<project>.
	DataDir string `yaml:"data_dir"`

	// StateDir holds export run metadata.
	StateDir string `yaml:"state_dir"`

	// PageSize is the flag listing page size (limit query parameter).
	PageSize int `yaml:"page_size"`

	// SegmentLimit is the limit passed to per-environment segment listings.
	SegmentLimit int `yaml:"segment_limit"`

	// Concurrency bounds the number of in-flight detail requests.
	Concurrency int `yaml:"concurrency"`

	// MaxPages caps a single listing so a misbehaving server cannot loop forever.
	MaxPages int `yaml:"max_pages"`

	// OnError is either "continue" or "fail-fast" and applies to non-success statuses.
	OnError string `yaml:"on_error"`
}

// ProjectConfig contains project-specific overrides, useful for very large
// projects that need smaller pages or fewer concurrent requests.
type ProjectConfig struct {
	PageSize    int `yaml:"page_size"`
	Concurrency int `yaml:"concurrency"`
}

// RateLimitConfig controls the shared rate gate: the request ceiling per
// period, spacing between requests, and how 429 responses are handled.
type RateLimitConfig struct {
	MaxRequests   int           `yaml:"max_requests"`
	Period        time.Duration `yaml:"period"`
	MinInterval   time.Duration `yaml:"min_interval"`
	FallbackDelay time.Duration `yaml:"fallback_delay"`
	MaxRetries    int           `yaml:"max_retries"`
	AutoWait      bool          `yaml:"auto_wait"`
	ShowProgress  bool          `yaml:"show_progress"`
}

// LogConfig selects the log level (debug, info, warn, error).
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with defaults matching the flag API's
// published limits. Page size 5 and segment limit 50 match earlier exports.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  "https://app.launchdarkly.com",
			TokenEnv: "LD_API_KEY",
			Timeout:  30 * time.Second,
		},
		Export: ExportConfig{
			DataDir:      "./data/source/project",
			StateDir:     "~/.flagport/state",
			PageSize:     5,
			SegmentLimit: 50,
			Concurrency:  4,
			MaxPages:     10000,
			OnError:      OnErrorContinue,
		},
		Projects: make(map[string]ProjectConfig),
		RateLimit: RateLimitConfig{
			MaxRequests:   5,
			Period:        time.Second,
			MinInterval:   100 * time.Millisecond,
			FallbackDelay: 2 * time.Second,
			MaxRetries:    3,
			AutoWait:      true,
			ShowProgress:  true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
