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

package apierror

import (
	"errors"
	"net"
	"strings"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
)

// Inspector provides methods to classify errors returned by the flag API
// client or the transport underneath it.
type Inspector interface {
	// IsAuthError returns true if the error represents an authentication or authorization error.
	IsAuthError(err error) bool

	// IsNotFoundError returns true if the error represents a resource not found error.
	IsNotFoundError(err error) bool

	// IsRateLimitError returns true if the error represents a rate limit error.
	IsRateLimitError(err error) bool

	// IsNetworkError returns true if the error represents a network connectivity error.
	IsNetworkError(err error) bool
}

// FlagAPIInspector implements the Inspector interface for flag API errors.
type FlagAPIInspector struct{}

// NewInspector creates a new FlagAPIInspector.
func NewInspector() Inspector {
	return &FlagAPIInspector{}
}

// IsAuthError checks if the error is an authentication or authorization error.
func (i *FlagAPIInspector) IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, porterrors.ErrInvalidToken) {
		return true
	}
	var se *porterrors.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 401 || se.StatusCode == 403
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "invalid api key")
}

// IsNotFoundError checks if the error is a not found error.
func (i *FlagAPIInspector) IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var se *porterrors.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 404
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// IsRateLimitError checks if the error is a rate limit error.
func (i *FlagAPIInspector) IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, porterrors.ErrRateLimit) {
		return true
	}
	var se *porterrors.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 429
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsNetworkError checks if the error is a network connectivity error.
func (i *FlagAPIInspector) IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, porterrors.ErrTransport) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "dial tcp") ||
		strings.Contains(errStr, "tls handshake") ||
		strings.Contains(errStr, "unexpected eof") ||
		strings.Contains(errStr, "network is unreachable")
}
