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

package maintainers

import (
	"fmt"
	"os"
	"sort"

	"github.com/tidwall/gjson"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
)

// Mapping maps old maintainer IDs to new ones.
type Mapping map[string]string

// Chain is a pair of mapping entries where the target of one is the source
// of another. Rewriting is then not idempotent: a second run would move
// From's flags on to To.
type Chain struct {
	From string
	Via  string
	To   string
}

func (c Chain) String() string {
	return fmt.Sprintf("%s -> %s -> %s", c.From, c.Via, c.To)
}

// LoadMapping reads a mapping file. The file must hold a JSON object whose
// values are non-empty strings.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", porterrors.ErrInvalidMapping, err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes mapping JSON.
func ParseMapping(data []byte) (Mapping, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", porterrors.ErrInvalidMapping)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object of old -> new maintainer IDs", porterrors.ErrInvalidMapping)
	}

	mapping := make(Mapping)
	var bad error
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String || value.Str == "" {
			bad = fmt.Errorf("%w: value for %q must be a non-empty string, got %s",
				porterrors.ErrInvalidMapping, key.Str, value.Raw)
			return false
		}
		if key.Str == "" {
			bad = fmt.Errorf("%w: empty maintainer ID as key", porterrors.ErrInvalidMapping)
			return false
		}
		if _, dup := mapping[key.Str]; dup {
			bad = fmt.Errorf("%w: duplicate key %q", porterrors.ErrInvalidMapping, key.Str)
			return false
		}
		mapping[key.Str] = value.Str
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return mapping, nil
}

// Chains returns every pair of entries A -> B, B -> C in the mapping,
// sorted. Self-mappings are ignored.
func (m Mapping) Chains() []Chain {
	var chains []Chain
	for from, via := range m {
		if from == via {
			continue
		}
		to, ok := m[via]
		if !ok || to == via {
			continue
		}
		chains = append(chains, Chain{From: from, Via: via, To: to})
	}
	sort.Slice(chains, func(i, j int) bool {
		if chains[i].From != chains[j].From {
			return chains[i].From < chains[j].From
		}
		return chains[i].Via < chains[j].Via
	})
	return chains
}
