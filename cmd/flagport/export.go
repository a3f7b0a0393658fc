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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sirseerhq/flagport/internal/config"
	porterrors "github.com/sirseerhq/flagport/internal/errors"
	"github.com/sirseerhq/flagport/internal/export"
	"github.com/sirseerhq/flagport/internal/fetch"
	"github.com/sirseerhq/flagport/internal/flagapi"
	"github.com/sirseerhq/flagport/internal/metadata"
	"github.com/sirseerhq/flagport/internal/ratelimit"
	"github.com/sirseerhq/flagport/internal/store"
	"github.com/sirseerhq/flagport/pkg/version"
)

// exportOptions holds the export command's flags.
type exportOptions struct {
	project     string
	configFile  string
	token       string
	baseURL     string
	dataDir     string
	stateDir    string
	pageSize    int
	concurrency int
	onError     string
	logLevel    string
	timeout     time.Duration
	printMeta   bool
}

func newExportCommand() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a flag project to the local data directory",
		Long: `Export a flag project to <data-dir>/<project>:

  project.json            project with its environments
  segment-<env>.json      segments of each environment
  flags.json              ordered list of flag keys
  flags/<key>.json        full definition of each flag

Authentication is required via API key:
  - Use --token flag to provide the key directly
  - Or set the environment variable named by api.token_env (default LD_API_KEY)

Requests that fail with an error status are logged with their status and
body. With --on-error continue (the default) the export carries on and exits 0;
with --on-error fail-fast the first such failure aborts the export. An
unreachable API always aborts the export.`,
		Example: `  flagport export -p default
  flagport export -p default --page-size 20 --concurrency 2
  flagport export -p default --on-error fail-fast --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			return runExport(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	bindExportFlags(cmd.Flags(), &opts)

	_ = cmd.MarkFlagRequired("project")

	return cmd
}

// bindExportFlags registers the export flags on fs.
func bindExportFlags(fs *pflag.FlagSet, opts *exportOptions) {
	fs.StringVarP(&opts.project, "project", "p", "", "Project key to export (required)")
	fs.StringVar(&opts.configFile, "config", "", "Path to config file (default: .flagport.yaml or ~/.flagport/config.yaml)")
	fs.StringVar(&opts.token, "token", "", "Flag API key (overrides the api.token_env environment variable)")
	fs.StringVar(&opts.baseURL, "base-url", "", "Flag API base URL (default from config)")
	fs.StringVar(&opts.dataDir, "data-dir", "", "Root directory of exported projects (default from config)")
	fs.StringVar(&opts.stateDir, "state-dir", "", "Directory for export metadata (default from config)")
	fs.IntVar(&opts.pageSize, "page-size", 0, "Flags per listing page, 1-100 (default from config)")
	fs.IntVar(&opts.concurrency, "concurrency", 0, "Maximum concurrent detail requests (default from config)")
	fs.StringVar(&opts.onError, "on-error", "", "Error policy: continue or fail-fast (default from config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Abort the export after this duration (0 means no limit)")
	fs.BoolVar(&opts.printMeta, "print-metadata", false, "Write the export metadata as JSON to stdout when the run ends")
}

// applyFlags overrides configuration values with the flags that were set.
func (o exportOptions) applyFlags(cfg *config.Config) {
	if o.baseURL != "" {
		cfg.API.BaseURL = o.baseURL
	}
	if o.dataDir != "" {
		cfg.Export.DataDir = o.dataDir
	}
	if o.stateDir != "" {
		cfg.Export.StateDir = o.stateDir
	}
	if o.pageSize != 0 {
		cfg.Export.PageSize = o.pageSize
	}
	if o.concurrency != 0 {
		cfg.Export.Concurrency = o.concurrency
	}
	if o.onError != "" {
		cfg.Export.OnError = o.onError
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}

// runExport executes the export command
func runExport(ctx context.Context, opts exportOptions, stdout, stderr io.Writer) error {
	cfg, err := config.LoadConfigForProject(opts.configFile, opts.project)
	if err != nil {
		return err
	}
	opts.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	policy, err := fetch.ParsePolicy(cfg.Export.OnError)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Level, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	apiKey := getAPIKey(opts.token, cfg.API.TokenEnv)
	if apiKey == "" {
		return fmt.Errorf("%w: API key not found. Set %s or use --token flag",
			porterrors.ErrInvalidToken, cfg.API.TokenEnv)
	}

	gate := ratelimit.New(ratelimit.Config{
		MaxRequests:   cfg.RateLimit.MaxRequests,
		Period:        cfg.RateLimit.Period,
		MinInterval:   cfg.RateLimit.MinInterval,
		FallbackDelay: cfg.RateLimit.FallbackDelay,
		ShowProgress:  cfg.RateLimit.ShowProgress,
	}, ratelimit.WithLogger(logger))

	client := flagapi.NewClient(
		flagapi.Credentials{BaseURL: cfg.API.BaseURL, APIKey: apiKey},
		gate,
		flagapi.WithTimeout(cfg.API.Timeout),
		flagapi.WithRateLimitRetries(cfg.RateLimit.MaxRetries),
		flagapi.WithAutoWait(cfg.RateLimit.AutoWait),
		flagapi.WithLogger(logger),
	)

	tracker := metadata.New()
	exporter := export.New(client, store.NewFileStore(),
		export.WithLogger(logger),
		export.WithTracker(tracker))

	logger.Info("Starting export",
		zap.String("project", opts.project),
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("data_dir", cfg.ProjectDir(opts.project)),
		zap.Stringer("on_error", policy))

	result, runErr := exporter.Run(ctx, export.Options{
		Project:      opts.project,
		DataDir:      cfg.Export.DataDir,
		PageSize:     cfg.Export.PageSize,
		SegmentLimit: cfg.Export.SegmentLimit,
		Concurrency:  cfg.Export.Concurrency,
		MaxPages:     cfg.Export.MaxPages,
		Policy:       policy,
	})

	md := tracker.GenerateMetadata(version.Version, metadata.ExportParams{
		Project:     opts.project,
		BaseURL:     cfg.API.BaseURL,
		DataDir:     cfg.Export.DataDir,
		PageSize:    cfg.Export.PageSize,
		Concurrency: cfg.Export.Concurrency,
		OnError:     policy.String(),
	}, runErr)
	if path, err := metadata.SaveMetadata(md, cfg.Export.StateDir); err != nil {
		logger.Warn("Failed to save export metadata", zap.Error(err))
	} else {
		logger.Debug("Saved export metadata", zap.String("path", path))
	}

	if opts.printMeta {
		if err := metadata.WriteMetadataToWriter(md, stdout); err != nil {
			logger.Warn("Failed to write export metadata", zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}

	reportExport(logger, md, result)
	return nil
}

func reportExport(logger *zap.Logger, md *metadata.ExportMetadata, result *export.Result) {
	fields := []zap.Field{
		zap.String("status", md.Results.Status),
		zap.Int("environments", md.Results.Environments),
		zap.Int("segments", md.Results.SegmentsWritten),
		zap.Int("flags", md.Results.FlagsWritten),
		zap.Int64("api_calls", md.Results.APICallCount),
		zap.String("duration", md.Results.Duration),
		zap.String("dir", result.ProjectDir),
	}
	if md.Results.Status == metadata.StatusComplete {
		logger.Info("Export finished", fields...)
		return
	}

	logger.Warn("Export finished with errors", fields...)
	if !result.ListingComplete {
		logger.Warn("Flag list may be incomplete")
	}
	if len(result.FailedSegments) > 0 {
		logger.Warn("Segments not exported", zap.Strings("environments", result.FailedSegments))
	}
	if len(result.FailedFlags) > 0 {
		logger.Warn("Flags not exported", zap.Strings("flags", result.FailedFlags))
	}
}
