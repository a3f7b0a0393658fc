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

// Package main implements the flagport command-line interface.
// flagport exports a feature flag project from a LaunchDarkly-compatible
// REST API to local JSON files and rewrites flag maintainers in the export.
//
// The CLI supports:
//   - Exporting a project, its segments and every flag (export)
//   - Rewriting maintainerId across exported flags (maintainers)
//   - YAML configuration with environment and flag overrides
//   - Graceful cancellation on SIGINT/SIGTERM
//
// Usage:
//
//	flagport export -p <project> [flags]
//	flagport maintainers -p <project> -m <mapping.json> [flags]
//
// Example:
//
//	export LD_API_KEY=api-xxxx
//	flagport export -p default
//	flagport maintainers -p default -m mapping.json --dry-run
//
// Exit codes:
//   - 0: Success, including exports where individual items were logged as failed
//   - 1: Fatal error (missing API key, project not readable, unreachable API,
//     fail-fast abort, invalid mapping or flag file)
package main
