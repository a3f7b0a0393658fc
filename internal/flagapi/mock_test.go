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

package flagapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
)

func TestMockClientScriptedReplies(t *testing.T) {
	m := NewMockClient().
		On("flags/p/a",
			MockResponse{Status: http.StatusServiceUnavailable, Body: "busy"},
			MockResponse{Status: http.StatusOK, Body: `{"key":"a"}`}).
		OnJSON("projects/p", `{"key":"p"}`)

	ctx := context.Background()

	first, err := m.Get(ctx, "flags/p/a")
	if err != nil || first.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("first reply = %+v, %v", first, err)
	}
	for i := 0; i < 2; i++ {
		resp, err := m.Get(ctx, "flags/p/a")
		if err != nil || string(resp.Body) != `{"key":"a"}` {
			t.Fatalf("repeat reply %d = %+v, %v", i, resp, err)
		}
	}

	resp, err := m.Get(ctx, "unknown")
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("unscripted path = %+v, %v; want 404", resp, err)
	}

	if got := m.CallCount("flags/p/a"); got != 3 {
		t.Errorf("CallCount = %d, want 3", got)
	}
	if got := m.RequestCount(); got != 4 {
		t.Errorf("RequestCount = %d, want 4", got)
	}
}

func TestMockClientFailures(t *testing.T) {
	m := NewMockClient().On("x", MockResponse{Err: errors.New("scripted")})
	if _, err := m.Get(context.Background(), "x"); err == nil || err.Error() != "scripted" {
		t.Errorf("scripted error = %v", err)
	}

	m.ShouldFailNetwork = true
	if _, err := m.Get(context.Background(), "x"); !errors.Is(err, porterrors.ErrTransport) {
		t.Errorf("network failure = %v, want ErrTransport", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Get(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled = %v, want context.Canceled", err)
	}
}

func TestMockClientConcurrent(t *testing.T) {
	m := NewMockClient().OnJSON("p", `{}`)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Get(context.Background(), "p")
		}()
	}
	wg.Wait()
	if got := len(m.Calls()); got != 20 {
		t.Errorf("Calls() = %d, want 20", got)
	}
}
