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

// Package config provides configuration management for flagport with
// support for multiple configuration sources and a well-defined precedence
// order.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Command-line flags
//  2. Environment variables
//  3. Project-specific configuration
//  4. Global configuration file
//  5. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from multiple sources and applies them in
// the correct precedence order. If configPath is provided, it loads from
// that specific file. Otherwise, it searches standard locations:
//   - .flagport.yaml (current directory)
//   - .flagport.yml (current directory)
//   - ~/.flagport/config.yaml
//   - ~/.flagport/config.yml
//
// Returns an error if the specified config file cannot be loaded, but will
// succeed with defaults if no config file is found in standard locations.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		defaultPaths := []string{
			".flagport.yaml",
			".flagport.yml",
			filepath.Join(os.Getenv("HOME"), ".flagport", "config.yaml"),
			filepath.Join(os.Getenv("HOME"), ".flagport", "config.yml"),
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	applyEnvOverrides(cfg)

	cfg.Export.DataDir = expandPath(cfg.Export.DataDir)
	cfg.Export.StateDir = expandPath(cfg.Export.StateDir)

	return cfg, nil
}

// LoadConfigForProject loads configuration and applies project-specific
// overrides for the given project key.
func LoadConfigForProject(configPath, project string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg.Export.PageSize = cfg.GetPageSize(project)
	cfg.Export.Concurrency = cfg.GetConcurrency(project)

	return cfg, nil
}

// loadConfigFile reads and parses a YAML config file
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if baseURL := os.Getenv("FLAGPORT_BASE_URL"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}

	if dataDir := os.Getenv("FLAGPORT_DATA_DIR"); dataDir != "" {
		cfg.Export.DataDir = dataDir
	}
	if stateDir := os.Getenv("FLAGPORT_STATE_DIR"); stateDir != "" {
		cfg.Export.StateDir = stateDir
	}
	if pageSize := os.Getenv("FLAGPORT_PAGE_SIZE"); pageSize != "" {
		if size, err := parsePositiveInt(pageSize); err == nil {
			cfg.Export.PageSize = size
		}
	}
	if concurrency := os.Getenv("FLAGPORT_CONCURRENCY"); concurrency != "" {
		if n, err := parsePositiveInt(concurrency); err == nil {
			cfg.Export.Concurrency = n
		}
	}
	if onError := os.Getenv("FLAGPORT_ON_ERROR"); onError != "" {
		cfg.Export.OnError = strings.ToLower(strings.TrimSpace(onError))
	}

	if autoWait := os.Getenv("FLAGPORT_RATE_LIMIT_AUTO_WAIT"); autoWait != "" {
		cfg.RateLimit.AutoWait = parseBool(autoWait)
	}

	if level := os.Getenv("FLAGPORT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home := os.Getenv("HOME")
		if home == "" {
			home = os.Getenv("USERPROFILE") // Windows
		}
		path = filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// parseBool parses various boolean representations
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// GetPageSize returns the effective flag listing page size for a project.
func (c *Config) GetPageSize(project string) int {
	if projectConfig, ok := c.Projects[project]; ok && projectConfig.PageSize > 0 {
		return projectConfig.PageSize
	}
	return c.Export.PageSize
}

// GetConcurrency returns the effective fan-out concurrency for a project.
func (c *Config) GetConcurrency(project string) int {
	if projectConfig, ok := c.Projects[project]; ok && projectConfig.Concurrency > 0 {
		return projectConfig.Concurrency
	}
	return c.Export.Concurrency
}

// ProjectDir returns the directory an export of project is written to.
func (c *Config) ProjectDir(project string) string {
	return filepath.Join(c.Export.DataDir, project)
}

// Validate checks if the configuration contains valid values. This should
// be called after loading configuration and applying flag overrides.
func (c *Config) Validate() error {
	if c.Export.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got: %d", c.Export.PageSize)
	}
	if c.Export.PageSize > 100 {
		return fmt.Errorf("page size %d exceeds flag API limit of 100", c.Export.PageSize)
	}
	if c.Export.SegmentLimit <= 0 {
		return fmt.Errorf("segment limit must be positive, got: %d", c.Export.SegmentLimit)
	}
	if c.Export.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got: %d", c.Export.Concurrency)
	}
	if c.Export.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive, got: %d", c.Export.MaxPages)
	}
	if c.Export.OnError != OnErrorContinue && c.Export.OnError != OnErrorFailFast {
		return fmt.Errorf("on_error must be %q or %q, got: %q", OnErrorContinue, OnErrorFailFast, c.Export.OnError)
	}
	if c.Export.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("flag API base URL cannot be empty")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit max_requests must be positive, got: %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Period <= 0 {
		return fmt.Errorf("rate limit period must be positive, got: %s", c.RateLimit.Period)
	}
	if c.RateLimit.MaxRetries < 0 {
		return fmt.Errorf("rate limit max_retries cannot be negative, got: %d", c.RateLimit.MaxRetries)
	}
	return nil
}
