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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
	"github.com/sirseerhq/flagport/internal/fetch"
	"github.com/sirseerhq/flagport/internal/flagapi"
	"github.com/sirseerhq/flagport/internal/metadata"
	"github.com/sirseerhq/flagport/internal/store"
)

const projectBody = `{"key":"default","name":"Default","environments":{"items":[{"key":"production"},{"key":"test"}]}}`

// scriptProject registers a project with the given flags, listed with
// pageSize. Flags named in details get that reply instead of a document.
func scriptProject(m *flagapi.MockClient, flags []string, pageSize int, details map[string]flagapi.MockResponse) {
	m.OnJSON("projects/default?expand=environments", projectBody)
	m.OnJSON("segments/default/production?limit=50", `{"items":[{"key":"beta-users"}]}`)
	m.OnJSON("segments/default/test?limit=50", `{"items":[]}`)

	for offset := 0; offset == 0 || offset < len(flags); offset += pageSize {
		end := min(offset+pageSize, len(flags))
		items := make([]map[string]string, 0, pageSize)
		for _, k := range flags[offset:end] {
			items = append(items, map[string]string{"key": k})
		}
		page := map[string]any{"items": items, "_links": map[string]any{}}
		if end < len(flags) {
			page["_links"] = map[string]any{"next": map[string]string{"href": "next"}}
		}
		body, _ := json.Marshal(page)
		m.OnJSON(fmt.Sprintf("flags/default?summary=true&limit=%d&offset=%d", pageSize, offset), string(body))
	}

	for _, k := range flags {
		if reply, ok := details[k]; ok {
			m.On("flags/default/"+k, reply)
			continue
		}
		m.OnJSON("flags/default/"+k, fmt.Sprintf(`{"key":%q,"maintainerId":"m-1","variations":[true,false]}`, k))
	}
}

func testOptions(dataDir string) Options {
	return Options{
		Project:      "default",
		DataDir:      dataDir,
		PageSize:     3,
		SegmentLimit: 50,
		Concurrency:  2,
		MaxPages:     100,
		Policy:       fetch.Continue,
	}
}

func readJSON(t *testing.T, path string) any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var v any
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestRunExportsProject(t *testing.T) {
	flags := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"}
	m := flagapi.NewMockClient()
	scriptProject(m, flags, 3, nil)

	dataDir := t.TempDir()
	tracker := metadata.New()
	exp := New(m, store.NewFileStore(), WithTracker(tracker))

	result, err := exp.Run(context.Background(), testOptions(dataDir))
	require.NoError(t, err)

	projectDir := filepath.Join(dataDir, "default")
	assert.Equal(t, projectDir, result.ProjectDir)
	assert.Equal(t, []string{"production", "test"}, result.Environments)
	assert.True(t, result.ListingComplete)
	assert.Equal(t, len(flags), result.FlagsWritten)
	assert.Empty(t, result.FailedFlags)

	project := readJSON(t, filepath.Join(projectDir, "project.json")).(map[string]any)
	assert.Equal(t, "default", project["key"])

	for _, env := range []string{"production", "test"} {
		assert.FileExists(t, filepath.Join(projectDir, "segment-"+env+".json"))
	}

	var listed []string
	data, err := os.ReadFile(filepath.Join(projectDir, "flags.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &listed))
	if diff := cmp.Diff(flags, listed); diff != "" {
		t.Errorf("flags.json mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Join(projectDir, "flags"))
	require.NoError(t, err)
	assert.Len(t, entries, len(flags))
	for _, k := range flags {
		doc := readJSON(t, filepath.Join(projectDir, "flags", k+".json")).(map[string]any)
		assert.Equal(t, k, doc["key"])
	}

	for _, k := range flags {
		assert.Equal(t, 1, m.CallCount("flags/default/"+k), "flag %s fetched more than once", k)
	}

	md := tracker.GenerateMetadata("test", metadata.ExportParams{Project: "default"}, nil)
	assert.Equal(t, metadata.StatusComplete, md.Results.Status)
	assert.Equal(t, 2, md.Results.Environments)
	assert.Equal(t, 2, md.Results.SegmentsWritten)
	assert.Equal(t, len(flags), md.Results.FlagsWritten)
	assert.Equal(t, m.RequestCount(), md.Results.APICallCount)
}

func TestRunApplicationErrorOnOneFlag(t *testing.T) {
	m := flagapi.NewMockClient()
	scriptProject(m, []string{"a", "b", "c", "d"}, 5, map[string]flagapi.MockResponse{
		"b": {Status: 500, Body: `{"message":"internal error"}`},
	})

	dataDir := t.TempDir()
	opts := testOptions(dataDir)
	opts.PageSize = 5

	result, err := New(m, store.NewFileStore()).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, result.FailedFlags)
	assert.Equal(t, 3, result.FlagsWritten)
	for _, k := range []string{"a", "c", "d"} {
		assert.FileExists(t, filepath.Join(dataDir, "default", "flags", k+".json"))
	}
	assert.NoFileExists(t, filepath.Join(dataDir, "default", "flags", "b.json"))
}

func TestRunUnreachableFlagAborts(t *testing.T) {
	m := flagapi.NewMockClient()
	m.OnJSON("projects/default?expand=environments", `{"key":"default","environments":{"items":[]}}`)
	m.OnJSON("flags/default?summary=true&limit=3&offset=0", `{"items":[{"key":"a"},{"key":"b"},{"key":"c"}],"_links":{}}`)
	m.OnJSON("flags/default/a", `{"key":"a"}`)
	m.On("flags/default/b", flagapi.MockResponse{Err: fmt.Errorf("GET flags/default/b: %w: connection refused", porterrors.ErrTransport)})
	m.OnJSON("flags/default/c", `{"key":"c"}`)

	opts := testOptions(t.TempDir())
	opts.Concurrency = 1

	_, err := New(m, store.NewFileStore()).Run(context.Background(), opts)
	require.ErrorIs(t, err, porterrors.ErrTransport)
	assert.Zero(t, m.CallCount("flags/default/c"), "work continued after a transport failure")
}

func TestRunProjectFailure(t *testing.T) {
	m := flagapi.NewMockClient().
		On("projects/default?expand=environments", flagapi.MockResponse{Status: 404, Body: `{"message":"Unknown project"}`})

	_, err := New(m, store.NewFileStore()).Run(context.Background(), testOptions(t.TempDir()))
	require.ErrorIs(t, err, porterrors.ErrStatus)
	assert.Len(t, m.Calls(), 1)
}

func TestRunProjectUnauthorized(t *testing.T) {
	m := flagapi.NewMockClient().
		On("projects/default?expand=environments", flagapi.MockResponse{Status: 401, Body: `{"message":"Invalid access token"}`})

	_, err := New(m, store.NewFileStore()).Run(context.Background(), testOptions(t.TempDir()))
	require.ErrorIs(t, err, porterrors.ErrInvalidToken)
	require.ErrorIs(t, err, porterrors.ErrStatus)
}

func TestRunUnauthorizedFlagFollowsPolicy(t *testing.T) {
	flags := []string{"a", "b", "c"}
	denied := map[string]flagapi.MockResponse{"b": {Status: 401, Body: `{"message":"Invalid access token"}`}}

	t.Run("continue", func(t *testing.T) {
		m := flagapi.NewMockClient()
		scriptProject(m, flags, 5, denied)
		dataDir := t.TempDir()

		result, err := New(m, store.NewFileStore()).Run(context.Background(), testOptions(dataDir))
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, result.FailedFlags)
		assert.Equal(t, 2, result.FlagsWritten)
		assert.FileExists(t, filepath.Join(dataDir, "default", "flags", "c.json"))
		assert.NoFileExists(t, filepath.Join(dataDir, "default", "flags", "b.json"))
	})

	t.Run("fail-fast", func(t *testing.T) {
		m := flagapi.NewMockClient()
		scriptProject(m, flags, 5, denied)
		opts := testOptions(t.TempDir())
		opts.Policy = fetch.FailFast

		_, err := New(m, store.NewFileStore()).Run(context.Background(), opts)
		require.ErrorIs(t, err, porterrors.ErrStatus)
		assert.NotErrorIs(t, err, porterrors.ErrInvalidToken)
	})
}

func TestRunSegmentFailure(t *testing.T) {
	setup := func() *flagapi.MockClient {
		m := flagapi.NewMockClient()
		m.OnJSON("projects/default?expand=environments", projectBody)
		m.OnJSON("segments/default/production?limit=50", `{"items":[]}`)
		m.On("segments/default/test?limit=50", flagapi.MockResponse{Status: 403, Body: `{"message":"forbidden"}`})
		m.OnJSON("flags/default?summary=true&limit=3&offset=0", `{"items":[],"_links":{}}`)
		return m
	}

	t.Run("continue", func(t *testing.T) {
		dataDir := t.TempDir()
		result, err := New(setup(), store.NewFileStore()).Run(context.Background(), testOptions(dataDir))
		require.NoError(t, err)
		assert.Equal(t, []string{"test"}, result.FailedSegments)
		assert.FileExists(t, filepath.Join(dataDir, "default", "segment-production.json"))
		assert.NoFileExists(t, filepath.Join(dataDir, "default", "segment-test.json"))
		assert.DirExists(t, filepath.Join(dataDir, "default", "flags"))
	})

	t.Run("fail-fast", func(t *testing.T) {
		opts := testOptions(t.TempDir())
		opts.Policy = fetch.FailFast
		m := setup()
		_, err := New(m, store.NewFileStore()).Run(context.Background(), opts)
		require.ErrorIs(t, err, porterrors.ErrStatus)
		assert.Zero(t, m.CallCount("flags/default?summary=true&limit=3&offset=0"))
	})
}

func TestRunIncompleteListing(t *testing.T) {
	m := flagapi.NewMockClient()
	m.OnJSON("projects/default?expand=environments", `{"key":"default"}`)
	m.OnJSON("flags/default?summary=true&limit=3&offset=0", `{"items":[{"key":"a"}],"_links":{"next":{}}}`)
	m.On("flags/default?summary=true&limit=3&offset=3", flagapi.MockResponse{Status: 500, Body: "oops"})
	m.OnJSON("flags/default/a", `{"key":"a"}`)

	tracker := metadata.New()
	result, err := New(m, store.NewFileStore(), WithTracker(tracker)).Run(context.Background(), testOptions(t.TempDir()))
	require.NoError(t, err)
	assert.False(t, result.ListingComplete)
	assert.Equal(t, []string{"a"}, result.Flags)
	assert.Empty(t, result.Environments)

	md := tracker.GenerateMetadata("test", metadata.ExportParams{Project: "default"}, nil)
	assert.Equal(t, metadata.StatusPartial, md.Results.Status)
}

func TestRunRequiresProject(t *testing.T) {
	_, err := New(flagapi.NewMockClient(), store.NewFileStore()).Run(context.Background(), Options{DataDir: t.TempDir()})
	require.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	m := flagapi.NewMockClient()
	scriptProject(m, []string{"a"}, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(m, store.NewFileStore()).Run(ctx, testOptions(t.TempDir()))
	require.ErrorIs(t, err, context.Canceled)
}
