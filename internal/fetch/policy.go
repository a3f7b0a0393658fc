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

package fetch

import (
	"fmt"
	"strings"
)

// Policy decides what an application error does to a run.
type Policy string

const (
	// Continue logs the error and keeps going. This is the default.
	Continue Policy = "continue"

	// FailFast aborts the run on the first application error.
	FailFast Policy = "fail-fast"
)

// ParsePolicy converts a configuration value to a Policy. The empty string
// selects Continue.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Continue:
		return Continue, nil
	case FailFast:
		return FailFast, nil
	default:
		return "", fmt.Errorf("unknown error policy %q (want %q or %q)", s, Continue, FailFast)
	}
}

func (p Policy) String() string {
	return string(p)
}
