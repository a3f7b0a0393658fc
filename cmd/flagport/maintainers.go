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

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sirseerhq/flagport/internal/config"
	"github.com/sirseerhq/flagport/internal/export"
	"github.com/sirseerhq/flagport/internal/maintainers"
	"github.com/sirseerhq/flagport/internal/metadata"
	"github.com/sirseerhq/flagport/internal/store"
)

// maintainersOptions holds the maintainers command's flags.
type maintainersOptions struct {
	project     string
	mappingFile string
	configFile  string
	dataDir     string
	stateDir    string
	logLevel    string
	dryRun      bool
}

func newMaintainersCommand() *cobra.Command {
	var opts maintainersOptions

	cmd := &cobra.Command{
		Use:   "maintainers",
		Short: "Rewrite the maintainer of exported flags from a mapping file",
		Long: `Rewrite the maintainerId of every exported flag in <data-dir>/<project>/flags.

The mapping file is a JSON object from old maintainer IDs to new ones:

  {"5f1c...": "64ab...", "5f1d...": "64ac..."}

Only flags whose maintainerId appears in the mapping are rewritten, and only
that value changes. Run 'flagport export' first.`,
		Example: `  flagport maintainers -p default -m mapping.json
  flagport maintainers -p default -m mapping.json --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return runMaintainers(ctx, opts, cmd.ErrOrStderr())
		},
	}

	bindMaintainersFlags(cmd.Flags(), &opts)

	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("mapping")

	return cmd
}

// bindMaintainersFlags registers the maintainers flags on fs.
func bindMaintainersFlags(fs *pflag.FlagSet, opts *maintainersOptions) {
	fs.StringVarP(&opts.project, "project", "p", "", "Project key whose exported flags are rewritten (required)")
	fs.StringVarP(&opts.mappingFile, "mapping", "m", "", "JSON file mapping old maintainer IDs to new ones (required)")
	fs.StringVar(&opts.configFile, "config", "", "Path to config file (default: .flagport.yaml or ~/.flagport/config.yaml)")
	fs.StringVar(&opts.dataDir, "data-dir", "", "Root directory of exported projects (default from config)")
	fs.StringVar(&opts.stateDir, "state-dir", "", "Directory holding export metadata (default from config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Report the changes without writing them")
}

func runMaintainers(ctx context.Context, opts maintainersOptions, stderr io.Writer) error {
	cfg, err := config.LoadConfigForProject(opts.configFile, opts.project)
	if err != nil {
		return err
	}
	if opts.dataDir != "" {
		cfg.Export.DataDir = opts.dataDir
	}
	if opts.stateDir != "" {
		cfg.Export.StateDir = opts.stateDir
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := newLogger(cfg.Log.Level, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mapping, err := maintainers.LoadMapping(opts.mappingFile)
	if err != nil {
		return err
	}
	logger.Debug("Loaded maintainer mapping", zap.Int("entries", len(mapping)))

	reportLatestExport(logger, cfg.Export.StateDir, opts.project)

	flagsDir := filepath.Join(cfg.ProjectDir(opts.project), export.FlagsDir)
	rewriter := maintainers.NewRewriter(store.NewFileStore(),
		maintainers.WithLogger(logger),
		maintainers.WithDryRun(opts.dryRun))

	report, err := rewriter.Run(ctx, flagsDir, mapping)
	if err != nil {
		return fmt.Errorf("rewriting maintainers for project %q: %w", opts.project, err)
	}

	logger.Info("Maintainer rewrite summary",
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", len(report.Changes)),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("without_maintainer", report.NoMaintainer),
		zap.Bool("dry_run", report.DryRun))
	return nil
}

// reportLatestExport tells the operator whether the data being rewritten
// came from a complete export.
func reportLatestExport(logger *zap.Logger, stateDir, project string) {
	md, err := metadata.LoadLatestMetadata(stateDir, project)
	if err != nil {
		logger.Debug("Could not read export metadata", zap.Error(err))
		return
	}
	if md == nil {
		logger.Debug("No export metadata found", zap.String("project", project))
		return
	}

	fields := []zap.Field{
		zap.String("export_id", md.ExportID),
		zap.String("status", md.Results.Status),
		zap.Time("completed_at", md.Results.CompletedAt),
		zap.Int("flags", md.Results.FlagsWritten),
	}
	if md.Results.Status == metadata.StatusComplete {
		logger.Info("Latest export", fields...)
		return
	}
	logger.Warn("Latest export did not complete, some flags may be missing", fields...)
}
