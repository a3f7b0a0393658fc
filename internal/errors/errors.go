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

// Package errors defines sentinel errors for consistent error handling across the application.
// These errors map to specific exit codes in the CLI for proper scripting support.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for consistent error handling and exit code mapping
var (
	// ErrTransport indicates no response could be obtained from the flag API.
	// Always fatal. Maps to exit code 1.
	ErrTransport = errors.New("flag api unreachable")

	// ErrStatus indicates the flag API answered with a non-success status.
	// Fatal only under the fail-fast error policy.
	ErrStatus = errors.New("unexpected response status")

	// ErrInvalidToken indicates no API key could be found or the key was rejected.
	// Maps to exit code 2.
	ErrInvalidToken = errors.New("invalid api key")

	// ErrRateLimit indicates the flag API kept rate limiting after all retries.
	ErrRateLimit = errors.New("flag api rate limit exceeded")

	// ErrPaginationLimit indicates a listing did not terminate within the page cap.
	ErrPaginationLimit = errors.New("pagination limit exceeded")

	// ErrInvalidMapping indicates the maintainer mapping file could not be used.
	ErrInvalidMapping = errors.New("invalid maintainer mapping")

	// ErrInvalidDocument indicates a persisted document could not be read or parsed.
	ErrInvalidDocument = errors.New("invalid document")
)

// StatusError carries a non-success response so it can be logged with its
// status and body. It unwraps to ErrStatus.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}
