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

package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
	"github.com/sirseerhq/flagport/internal/fetch"
	"github.com/sirseerhq/flagport/internal/flagapi"
	"github.com/sirseerhq/flagport/internal/metadata"
)

// Document names inside a project directory.
const (
	ProjectDocument  = "project"
	FlagListDocument = "flags"
	FlagsDir         = "flags"
	segmentPrefix    = "segment-"
)

// Sink persists exported documents.
type Sink interface {
	EnsureDir(dir string) error
	WriteDocument(dir, name string, value any) (string, error)
}

// Options describe one export run.
type Options struct {
	Project      string
	DataDir      string
	PageSize     int
	SegmentLimit int
	Concurrency  int
	MaxPages     int
	Policy       fetch.Policy
}

// Result summarizes what a run wrote.
type Result struct {
	ProjectDir      string
	Environments    []string
	FailedSegments  []string
	Flags           []string
	ListingComplete bool
	FlagsWritten    int
	FailedFlags     []string
}

// Exporter runs exports.
type Exporter struct {
	client  flagapi.Client
	sink    Sink
	logger  *zap.Logger
	tracker *metadata.Tracker
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger for progress and error messages.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracker records the run's statistics in tracker.
func WithTracker(tracker *metadata.Tracker) Option {
	return func(e *Exporter) {
		if tracker != nil {
			e.tracker = tracker
		}
	}
}

// New creates an Exporter.
func New(client flagapi.Client, sink Sink, opts ...Option) *Exporter {
	e := &Exporter{
		client:  client,
		sink:    sink,
		logger:  zap.NewNop(),
		tracker: metadata.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run exports opts.Project. The returned Result is non-nil even when an
// error ends the run, and reflects what was written up to that point.
func (e *Exporter) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Project == "" {
		return nil, errors.New("project key is required")
	}
	projectDir := filepath.Join(opts.DataDir, opts.Project)
	result := &Result{ProjectDir: projectDir}

	defer e.recordAPICalls()

	if err := e.sink.EnsureDir(projectDir); err != nil {
		return result, err
	}

	envs, err := e.exportProject(ctx, opts.Project, projectDir)
	if err != nil {
		return result, err
	}
	result.Environments = envs

	if err := e.exportSegments(ctx, opts, projectDir, result); err != nil {
		return result, err
	}

	if err := e.exportFlagList(ctx, opts, projectDir, result); err != nil {
		return result, err
	}

	if err := e.exportFlags(ctx, opts, projectDir, result); err != nil {
		return result, err
	}

	return result, nil
}

// exportProject writes project.json and returns the environment keys. A
// project that cannot be fetched ends the run whatever the policy, since
// nothing else can be exported meaningfully without it.
func (e *Exporter) exportProject(ctx context.Context, project, projectDir string) ([]string, error) {
	path := fmt.Sprintf("projects/%s?expand=environments", url.PathEscape(project))
	resp, err := e.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed getting project %q: %w", project, err)
	}
	if !resp.Success() {
		e.logger.Error("Failed getting project",
			zap.String("project", project),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", resp.Body))
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("failed getting project %q: %w: %w", project, porterrors.ErrInvalidToken, resp.StatusError(path))
		}
		return nil, fmt.Errorf("failed getting project %q: %w", project, resp.StatusError(path))
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("project %q: response is not valid JSON: %w", project, porterrors.ErrInvalidDocument)
	}

	if _, err := e.sink.WriteDocument(projectDir, ProjectDocument, resp.Body); err != nil {
		return nil, err
	}

	var envs []string
	for _, key := range gjson.GetBytes(resp.Body, "environments.items.#.key").Array() {
		if key.Type == gjson.String && key.Str != "" {
			envs = append(envs, key.Str)
		}
	}
	e.logger.Info(fmt.Sprintf("Found %d environments", len(envs)))
	e.tracker.SetEnvironments(len(envs))
	return envs, nil
}

func (e *Exporter) exportSegments(ctx context.Context, opts Options, projectDir string, result *Result) error {
	if len(result.Environments) == 0 {
		return nil
	}

	fetcher := fetch.NewFetcher(e.client, opts.Concurrency,
		fetch.WithFetchPolicy(opts.Policy),
		fetch.WithItemLabel("segments for environment"),
		fetch.WithFetcherLogger(e.logger))

	pathFor := func(env string) string {
		return fmt.Sprintf("segments/%s/%s?limit=%d",
			url.PathEscape(opts.Project), url.PathEscape(env), opts.SegmentLimit)
	}

	summary, err := fetcher.FetchAll(ctx, result.Environments, pathFor, func(_ context.Context, env string, body []byte) error {
		if _, err := e.sink.WriteDocument(projectDir, segmentPrefix+env, body); err != nil {
			return err
		}
		e.tracker.SegmentWritten()
		return nil
	})
	if summary != nil {
		result.FailedSegments = summary.Failed
		e.tracker.SegmentsFailed(summary.Failed...)
	}
	if err != nil {
		return fmt.Errorf("exporting segments: %w", err)
	}
	return nil
}

func (e *Exporter) exportFlagList(ctx context.Context, opts Options, projectDir string, result *Result) error {
	paginator := fetch.NewPaginator(e.client, opts.PageSize,
		fetch.WithMaxPages(opts.MaxPages),
		fetch.WithPolicy(opts.Policy),
		fetch.WithLabel("flag"),
		fetch.WithPaginatorLogger(e.logger))

	listing, err := paginator.CollectKeys(ctx, fmt.Sprintf("flags/%s?summary=true", url.PathEscape(opts.Project)))
	if err != nil {
		return err
	}

	result.Flags = listing.Keys
	result.ListingComplete = listing.Complete
	e.tracker.SetFlagsListed(len(listing.Keys), listing.Complete)
	e.logger.Info(fmt.Sprintf("Found %d flags", len(listing.Keys)))

	_, err = e.sink.WriteDocument(projectDir, FlagListDocument, listing.Keys)
	return err
}

func (e *Exporter) exportFlags(ctx context.Context, opts Options, projectDir string, result *Result) error {
	flagsDir := filepath.Join(projectDir, FlagsDir)
	if err := e.sink.EnsureDir(flagsDir); err != nil {
		return err
	}
	if len(result.Flags) == 0 {
		return nil
	}

	fetcher := fetch.NewFetcher(e.client, opts.Concurrency,
		fetch.WithFetchPolicy(opts.Policy),
		fetch.WithItemLabel("flag"),
		fetch.WithFetcherLogger(e.logger))

	pathFor := func(key string) string {
		return fmt.Sprintf("flags/%s/%s", url.PathEscape(opts.Project), url.PathEscape(key))
	}

	summary, err := fetcher.FetchAll(ctx, result.Flags, pathFor, func(_ context.Context, key string, body []byte) error {
		if _, err := e.sink.WriteDocument(flagsDir, key, body); err != nil {
			return err
		}
		e.tracker.FlagWritten()
		return nil
	})
	if summary != nil {
		result.FlagsWritten = summary.Succeeded
		result.FailedFlags = summary.Failed
		e.tracker.FlagsFailed(summary.Failed...)
	}
	if err != nil {
		return fmt.Errorf("exporting flags: %w", err)
	}
	return nil
}

// requestCounter is implemented by clients that count their requests.
type requestCounter interface {
	RequestCount() int64
}

func (e *Exporter) recordAPICalls() {
	if rc, ok := e.client.(requestCounter); ok {
		e.tracker.SetAPICallCount(rc.RequestCount())
	}
}
