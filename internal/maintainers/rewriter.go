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
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
	"github.com/sirseerhq/flagport/internal/store"
)

// maintainerField is the top-level flag attribute that is rewritten.
const maintainerField = "maintainerId"

// Store is the file access the Rewriter needs.
type Store interface {
	ListFiles(dir string) ([]string, error)
	ReadDocument(dir, name string) ([]byte, error)
	WriteRaw(dir, file string, data []byte) error
}

// Change describes one rewritten flag.
type Change struct {
	Flag string
	From string
	To   string
}

// Report summarizes a rewrite.
type Report struct {
	Scanned      int
	Changes      []Change
	Unmatched    int
	NoMaintainer int
	Chains       []Chain
	DryRun       bool
}

// Rewriter applies a Mapping to a directory of flag documents.
type Rewriter struct {
	store  Store
	logger *zap.Logger
	dryRun bool
}

// Option customizes a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Rewriter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDryRun reports changes without writing them.
func WithDryRun(dryRun bool) Option {
	return func(r *Rewriter) {
		r.dryRun = dryRun
	}
}

// NewRewriter creates a Rewriter.
func NewRewriter(s Store, opts ...Option) *Rewriter {
	r := &Rewriter{store: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type pendingWrite struct {
	file string
	data []byte
}

// Run rewrites every flag document in flagsDir. All documents are read and
// checked before the first write, so an unreadable or unparseable document
// leaves the directory untouched.
func (r *Rewriter) Run(ctx context.Context, flagsDir string, mapping Mapping) (*Report, error) {
	report := &Report{DryRun: r.dryRun, Chains: mapping.Chains()}
	for _, c := range report.Chains {
		r.logger.Warn("Mapping chain detected, rewrite is not idempotent",
			zap.String("chain", c.String()))
	}

	files, err := r.store.ListFiles(flagsDir)
	if err != nil {
		return report, err
	}
	r.logger.Info(fmt.Sprintf("Found %d flags to process", len(files)))

	var writes []pendingWrite
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		flagKey := strings.TrimSuffix(file, store.Extension)

		data, err := r.store.ReadDocument(flagsDir, flagKey)
		if err != nil {
			return report, fmt.Errorf("flag %s: %w", flagKey, err)
		}

		current := gjson.GetBytes(data, maintainerField)
		if current.Type != gjson.String || current.Str == "" {
			report.NoMaintainer++
			continue
		}
		next, ok := mapping[current.Str]
		if !ok || next == current.Str {
			report.Unmatched++
			continue
		}

		updated, err := sjson.SetBytes(data, maintainerField, next)
		if err != nil {
			return report, fmt.Errorf("flag %s: %w: %w", flagKey, porterrors.ErrInvalidDocument, err)
		}

		report.Changes = append(report.Changes, Change{Flag: flagKey, From: current.Str, To: next})
		writes = append(writes, pendingWrite{file: file, data: updated})
	}

	for i, w := range writes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		change := report.Changes[i]
		r.logger.Info(fmt.Sprintf("Updating maintainer for flag %s: %s -> %s", change.Flag, change.From, change.To),
			zap.Bool("dry_run", r.dryRun))
		if r.dryRun {
			continue
		}
		if err := r.store.WriteRaw(flagsDir, w.file, w.data); err != nil {
			return report, fmt.Errorf("flag %s: %w", change.Flag, err)
		}
	}

	if r.dryRun {
		r.logger.Info("Dry run finished, no files were changed", zap.Int("would_update", len(writes)))
	} else {
		r.logger.Info("Finished updating maintainer IDs in local files", zap.Int("updated", len(writes)))
	}
	return report, nil
}
