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

// Package testutil provides common test helpers for flagport
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestAPIKey is the key FlagAPIServer accepts.
const TestAPIKey = "api-test-key"

// Failure scripts an error reply for a path.
type Failure struct {
	// Status and Body form the reply. Ignored when Drop is set.
	Status int
	Body   string

	// Drop closes the connection without answering.
	Drop bool

	// Times limits how often the failure fires. Zero means always.
	Times int
}

// Flag is a flag served by FlagAPIServer.
type Flag struct {
	Key          string
	MaintainerID string
}

// FlagAPIServer is a fake flag management API. It serves one project with
// environments, segments and flags, paginates the flag listing with
// _links.next, checks the Authorization header, and can be scripted to
// fail, drop connections or rate limit.
type FlagAPIServer struct {
	*httptest.Server
	Project string

	mu           sync.Mutex
	environments []string
	segments     map[string][]string
	flags        []Flag
	failures     map[string]*Failure
	history      []string

	rateLimitNext atomic.Int32
	retryAfter    atomic.Int32
	requestCount  atomic.Int32
}

// NewFlagAPIServer creates a fake API for project. It is closed when the
// test ends.
func NewFlagAPIServer(t *testing.T, project string) *FlagAPIServer {
	t.Helper()

	s := &FlagAPIServer{
		Project:  project,
		segments: make(map[string][]string),
		failures: make(map[string]*Failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/projects/{project}", s.handleProject)
	mux.HandleFunc("GET /api/v2/segments/{project}/{env}", s.handleSegments)
	mux.HandleFunc("GET /api/v2/flags/{project}", s.handleFlagList)
	mux.HandleFunc("GET /api/v2/flags/{project}/{key}", s.handleFlag)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

// AddEnvironment adds an environment with the given segment keys.
func (s *FlagAPIServer) AddEnvironment(env string, segments ...string) *FlagAPIServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.environments = append(s.environments, env)
	s.segments[env] = segments
	return s
}

// AddFlags adds flags in listing order.
func (s *FlagAPIServer) AddFlags(flags ...Flag) *FlagAPIServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, flags...)
	return s
}

// AddGeneratedFlags adds n flags named flag-000, flag-001, ... all
// maintained by maintainerID.
func (s *FlagAPIServer) AddGeneratedFlags(n int, maintainerID string) []string {
	keys := make([]string, n)
	flags := make([]Flag, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("flag-%03d", i)
		flags[i] = Flag{Key: keys[i], MaintainerID: maintainerID}
	}
	s.AddFlags(flags...)
	return keys
}

// Fail scripts a failure for path, relative to /api/v2/ and without query.
func (s *FlagAPIServer) Fail(path string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &f
}

// RateLimitNext answers the next n requests with 429 and the given
// Retry-After seconds.
func (s *FlagAPIServer) RateLimitNext(n, retryAfterSeconds int) {
	s.retryAfter.Store(int32(retryAfterSeconds))
	s.rateLimitNext.Store(int32(n))
}

// Requests returns the requested paths (relative to /api/v2/, with query).
func (s *FlagAPIServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// RequestCount returns how many requests reached the server.
func (s *FlagAPIServer) RequestCount() int {
	return int(s.requestCount.Load())
}

// CountRequests returns how many requests had the given path prefix.
func (s *FlagAPIServer) CountRequests(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (s *FlagAPIServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		rel := strings.TrimPrefix(r.URL.Path, "/api/v2/")

		s.mu.Lock()
		entry := rel
		if r.URL.RawQuery != "" {
			entry += "?" + r.URL.RawQuery
		}
		s.history = append(s.history, entry)
		failure := s.takeFailure(rel)
		s.mu.Unlock()

		if r.Header.Get("Authorization") != TestAPIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"code":    "unauthorized",
				"message": "Invalid access token",
			})
			return
		}

		if s.rateLimitNext.Load() > 0 && s.rateLimitNext.Add(-1) >= 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.retryAfter.Load())))
			w.Header().Set("X-Ratelimit-Route-Remaining", "0")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"code":    "rate_limited",
				"message": "You've exceeded the API rate limit. Try again later.",
			})
			return
		}

		if failure != nil {
			if failure.Drop {
				if hj, ok := w.(http.Hijacker); ok {
					if conn, _, err := hj.Hijack(); err == nil {
						_ = conn.Close()
						return
					}
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failure.Status)
			_, _ = w.Write([]byte(failure.Body))
			return
		}

		w.Header().Set("X-Ratelimit-Route-Remaining", "100")
		w.Header().Set("X-Ratelimit-Global-Remaining", "1000")
		w.Header().Set("X-Ratelimit-Reset", strconv.FormatInt(time.Now().Add(10*time.Second).UnixMilli(), 10))
		next.ServeHTTP(w, r)
	})
}

// takeFailure returns the scripted failure for path, if any. Caller holds mu.
func (s *FlagAPIServer) takeFailure(path string) *Failure {
	f, ok := s.failures[path]
	if !ok {
		return nil
	}
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(s.failures, path)
		}
	}
	return f
}

func (s *FlagAPIServer) knownProject(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("project") != s.Project {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"code":    "not_found",
			"message": "Unknown project key " + r.PathValue("project"),
		})
		return false
	}
	return true
}

func (s *FlagAPIServer) handleProject(w http.ResponseWriter, r *http.Request) {
	if !s.knownProject(w, r) {
		return
	}
	s.mu.Lock()
	envs := append([]string(nil), s.environments...)
	s.mu.Unlock()

	project := map[string]any{
		"key":  s.Project,
		"name": strings.ToUpper(s.Project[:1]) + s.Project[1:],
		"tags": []string{},
	}
	if r.URL.Query().Get("expand") == "environments" {
		items := make([]map[string]any, 0, len(envs))
		for _, env := range envs {
			items = append(items, map[string]any{"key": env, "name": env, "color": "417505"})
		}
		project["environments"] = map[string]any{"items": items, "totalCount": len(items)}
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *FlagAPIServer) handleSegments(w http.ResponseWriter, r *http.Request) {
	if !s.knownProject(w, r) {
		return
	}
	env := r.PathValue("env")

	s.mu.Lock()
	keys, ok := s.segments[env]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "Unknown environment " + env})
		return
	}

	items := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		items = append(items, map[string]any{"key": k, "name": k, "included": []string{}, "excluded": []string{}})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "totalCount": len(items)})
}

func (s *FlagAPIServer) handleFlagList(w http.ResponseWriter, r *http.Request) {
	if !s.knownProject(w, r) {
		return
	}
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "invalid_request", "message": "limit must be between 1 and 100"})
		return
	}
	offset, _ := strconv.Atoi(q.Get("offset"))

	s.mu.Lock()
	flags := append([]Flag(nil), s.flags...)
	s.mu.Unlock()

	start := min(offset, len(flags))
	end := min(offset+limit, len(flags))
	items := make([]map[string]any, 0, end-start)
	for _, f := range flags[start:end] {
		items = append(items, map[string]any{"key": f.Key, "name": f.Key, "kind": "boolean"})
	}

	base := fmt.Sprintf("/api/v2/flags/%s?summary=true&limit=%d", s.Project, limit)
	links := map[string]any{
		"self": map[string]string{"href": fmt.Sprintf("%s&offset=%d", base, offset), "type": "application/json"},
	}
	if end < len(flags) {
		links["next"] = map[string]string{"href": fmt.Sprintf("%s&offset=%d", base, offset+limit), "type": "application/json"}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "totalCount": len(flags), "_links": links})
}

func (s *FlagAPIServer) handleFlag(w http.ResponseWriter, r *http.Request) {
	if !s.knownProject(w, r) {
		return
	}
	key := r.PathValue("key")

	s.mu.Lock()
	var found *Flag
	for i := range s.flags {
		if s.flags[i].Key == key {
			f := s.flags[i]
			found = &f
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "Unknown flag " + key})
		return
	}

	writeJSON(w, http.StatusOK, FlagDocument(found.Key, found.MaintainerID))
}

// FlagDocument returns the full definition served for a flag.
func FlagDocument(key, maintainerID string) map[string]any {
	doc := map[string]any{
		"key":         key,
		"name":        key,
		"kind":        "boolean",
		"description": "Flag " + key,
		"variations": []map[string]any{
			{"_id": "v-true", "value": true},
			{"_id": "v-false", "value": false},
		},
		"tags":      []string{"exported"},
		"temporary": true,
	}
	if maintainerID != "" {
		doc["maintainerId"] = maintainerID
		doc["_maintainer"] = map[string]any{"_id": maintainerID, "email": maintainerID + "@example.com"}
	}
	return doc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
