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
	"fmt"
	"net/http"
	"sync"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
)

// MockResponse is one scripted reply of a MockClient.
type MockResponse struct {
	Status int
	Body   string
	Header http.Header

	// Err, when set, is returned instead of a response.
	Err error
}

// MockClient is a mock implementation of the Client interface for testing.
// Replies are scripted per path; the last reply for a path repeats.
// It is safe for concurrent use.
type MockClient struct {
	mu        sync.Mutex
	responses map[string][]MockResponse
	calls     []string

	// ShouldFailNetwork makes every call fail as if the server were unreachable.
	ShouldFailNetwork bool
}

// NewMockClient creates an empty mock client. Unscripted paths answer 404.
func NewMockClient() *MockClient {
	return &MockClient{responses: make(map[string][]MockResponse)}
}

// On scripts the replies for path, consumed in order.
func (m *MockClient) On(path string, replies ...MockResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = append(m.responses[path], replies...)
	return m
}

// OnJSON scripts a single 200 reply with body for path.
func (m *MockClient) OnJSON(path, body string) *MockClient {
	return m.On(path, MockResponse{Status: http.StatusOK, Body: body})
}

// Get implements the Client interface.
func (m *MockClient) Get(ctx context.Context, path string) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.Lock()
	m.calls = append(m.calls, path)
	reply, ok := m.next(path)
	failNetwork := m.ShouldFailNetwork
	m.mu.Unlock()

	if failNetwork {
		return nil, fmt.Errorf("GET %s: %w: connection refused", path, porterrors.ErrTransport)
	}
	if !ok {
		return &Response{
			StatusCode: http.StatusNotFound,
			Header:     make(http.Header),
			Body:       []byte(`{"code":"not_found","message":"Unknown resource"}`),
		}, nil
	}
	if reply.Err != nil {
		return nil, reply.Err
	}

	header := reply.Header
	if header == nil {
		header = make(http.Header)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{StatusCode: status, Header: header, Body: []byte(reply.Body)}, nil
}

// next pops the next reply for path, keeping the last one. Caller holds mu.
func (m *MockClient) next(path string) (MockResponse, bool) {
	queue := m.responses[path]
	if len(queue) == 0 {
		return MockResponse{}, false
	}
	reply := queue[0]
	if len(queue) > 1 {
		m.responses[path] = queue[1:]
	}
	return reply, true
}

// Calls returns the requested paths in call order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times path was requested.
func (m *MockClient) CallCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == path {
			n++
		}
	}
	return n
}

// RequestCount returns the total number of calls.
func (m *MockClient) RequestCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.calls))
}
