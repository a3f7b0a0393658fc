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
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
	"github.com/sirseerhq/flagport/internal/flagapi"
)

func TestFanOutBoundsConcurrency(t *testing.T) {
	keys := make([]string, 30)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}

	var inFlight, peak atomic.Int32
	var seen sync.Map
	err := FanOut(context.Background(), keys, 3, func(_ context.Context, i int, key string) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		assert.Equal(t, keys[i], key)
		seen.Store(key, true)
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))

	for _, k := range keys {
		_, ok := seen.Load(k)
		assert.True(t, ok, "key %s not processed", k)
	}
}

func TestFanOutFirstErrorCancels(t *testing.T) {
	keys := make([]string, 50)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	boom := errors.New("boom")

	var calls atomic.Int32
	err := FanOut(context.Background(), keys, 2, func(ctx context.Context, i int, _ string) error {
		calls.Add(1)
		if i == 0 {
			return boom
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return nil
		}
	})
	require.ErrorIs(t, err, boom)
	assert.Less(t, calls.Load(), int32(len(keys)), "work continued after the failure")
}

func TestFanOutParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := FanOut(ctx, []string{"a", "b"}, 1, func(context.Context, int, string) error {
		calls.Add(1)
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func flagPath(key string) string { return "flags/p/" + key }

// collector records handled bodies and fails if a key is handled twice.
type collector struct {
	mu   sync.Mutex
	docs map[string]string
	t    *testing.T
}

func newCollector(t *testing.T) *collector {
	return &collector{docs: make(map[string]string), t: t}
}

func (c *collector) handle(_ context.Context, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.docs[key]; dup {
		c.t.Errorf("key %s handled twice", key)
	}
	c.docs[key] = string(body)
	return nil
}

func TestFetchAllContinuesPastApplicationErrors(t *testing.T) {
	m := flagapi.NewMockClient().
		OnJSON("flags/p/a", `{"key":"a"}`).
		On("flags/p/b", flagapi.MockResponse{Status: 500, Body: `{"message":"internal"}`}).
		OnJSON("flags/p/c", `{"key":"c"}`).
		On("flags/p/d", flagapi.MockResponse{Status: 404, Body: `{"message":"gone"}`})

	c := newCollector(t)
	f := NewFetcher(m, 2, WithItemLabel("flag"))
	summary, err := f.FetchAll(context.Background(), []string{"a", "b", "c", "d"}, flagPath, c.handle)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"a": `{"key":"a"}`, "c": `{"key":"c"}`}, c.docs)
	assert.Equal(t, 4, summary.Requested)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, []string{"b", "d"}, summary.Failed)
}

func TestFetchAllFailFast(t *testing.T) {
	m := flagapi.NewMockClient().
		On("flags/p/a", flagapi.MockResponse{Status: 500, Body: `{"message":"internal"}`})

	f := NewFetcher(m, 1, WithFetchPolicy(FailFast))
	_, err := f.FetchAll(context.Background(), []string{"a", "b", "c"}, flagPath, newCollector(t).handle)

	var se *porterrors.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.StatusCode)
	assert.Zero(t, m.CallCount("flags/p/c"))
}

func TestFetchAllTransportFailureIsFatal(t *testing.T) {
	m := flagapi.NewMockClient().
		OnJSON("flags/p/a", `{"key":"a"}`).
		On("flags/p/b", flagapi.MockResponse{Err: fmt.Errorf("GET flags/p/b: %w", porterrors.ErrTransport)})

	f := NewFetcher(m, 1)
	_, err := f.FetchAll(context.Background(), []string{"a", "b", "c", "d"}, flagPath, newCollector(t).handle)
	require.ErrorIs(t, err, porterrors.ErrTransport)
	assert.Contains(t, err.Error(), `"b"`)
	assert.Zero(t, m.CallCount("flags/p/d"))
}

func TestFetchAllHandlerErrorIsFatal(t *testing.T) {
	m := flagapi.NewMockClient().OnJSON("flags/p/a", `{}`)
	diskFull := errors.New("no space left on device")

	f := NewFetcher(m, 1)
	_, err := f.FetchAll(context.Background(), []string{"a"}, flagPath, func(context.Context, string, []byte) error {
		return diskFull
	})
	require.ErrorIs(t, err, diskFull)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "", want: Continue},
		{in: "continue", want: Continue},
		{in: "Fail-Fast", want: FailFast},
		{in: " fail-fast ", want: FailFast},
		{in: "ignore", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
