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
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
	"github.com/sirseerhq/flagport/internal/flagapi"
)

// DefaultMaxPages bounds a listing when no cap is configured.
const DefaultMaxPages = 10000

// Listing is the outcome of walking a paginated endpoint.
type Listing struct {
	// Keys holds every item key in page-arrival order, each once.
	Keys []string

	// Pages is the number of pages requested.
	Pages int

	// Complete is false when an application error ended the walk early
	// under the Continue policy.
	Complete bool
}

// Paginator walks an offset-paginated listing.
type Paginator struct {
	client   flagapi.Client
	pageSize int
	maxPages int
	policy   Policy
	label    string
	logger   *zap.Logger
}

// PaginatorOption customizes a Paginator.
type PaginatorOption func(*Paginator)

// WithMaxPages caps the number of pages requested.
func WithMaxPages(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// WithPolicy sets how application errors are handled.
func WithPolicy(policy Policy) PaginatorOption {
	return func(p *Paginator) {
		p.policy = policy
	}
}

// WithLabel names the listed items in progress messages.
func WithLabel(label string) PaginatorOption {
	return func(p *Paginator) {
		p.label = label
	}
}

// WithPaginatorLogger sets the logger.
func WithPaginatorLogger(logger *zap.Logger) PaginatorOption {
	return func(p *Paginator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPaginator creates a Paginator requesting pageSize items per page.
func NewPaginator(client flagapi.Client, pageSize int, opts ...PaginatorOption) *Paginator {
	if pageSize <= 0 {
		pageSize = 1
	}
	p := &Paginator{
		client:   client,
		pageSize: pageSize,
		maxPages: DefaultMaxPages,
		policy:   Continue,
		label:    "item",
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CollectKeys requests path page by page, appending limit and offset to
// its query, and accumulates items[].key. The walk continues for as long as
// a page carries _links.next, whatever the page's size, and stops as soon
// as one does not.
func (p *Paginator) CollectKeys(ctx context.Context, path string) (*Listing, error) {
	listing := &Listing{Keys: []string{}, Complete: true}
	seen := make(map[string]struct{})

	for offset := 0; ; offset += p.pageSize {
		if listing.Pages >= p.maxPages {
			return listing, fmt.Errorf("listing %s stopped after %d pages: %w",
				path, listing.Pages, porterrors.ErrPaginationLimit)
		}

		p.logger.Info(fmt.Sprintf("Building %s list", p.label),
			zap.Int("from", offset),
			zap.Int("to", offset+p.pageSize))

		pagePath := pageURL(path, p.pageSize, offset)
		resp, err := p.client.Get(ctx, pagePath)
		if err != nil {
			return listing, fmt.Errorf("listing %s: %w", path, err)
		}
		listing.Pages++

		if !resp.Success() {
			statusErr := resp.StatusError(pagePath)
			p.logger.Error(fmt.Sprintf("Failed listing %ss", p.label),
				zap.String("path", pagePath),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", resp.Body))
			if p.policy == FailFast {
				return listing, statusErr
			}
			p.logger.Warn(fmt.Sprintf("%s list may be incomplete", capitalize(p.label)),
				zap.Int("collected", len(listing.Keys)),
				zap.Int("offset", offset))
			listing.Complete = false
			return listing, nil
		}

		if !gjson.ValidBytes(resp.Body) {
			return listing, fmt.Errorf("listing %s: page at offset %d is not valid JSON: %w",
				path, offset, porterrors.ErrInvalidDocument)
		}

		page := gjson.ParseBytes(resp.Body)
		for _, item := range page.Get("items").Array() {
			key := item.Get("key")
			if key.Type != gjson.String || key.Str == "" {
				p.logger.Warn("Skipping item without key",
					zap.String("path", pagePath),
					zap.String("item", truncate(item.Raw, 200)))
				continue
			}
			if _, dup := seen[key.Str]; dup {
				p.logger.Debug("Skipping duplicate key", zap.String("key", key.Str))
				continue
			}
			seen[key.Str] = struct{}{}
			listing.Keys = append(listing.Keys, key.Str)
		}

		if !hasNext(page) {
			return listing, nil
		}
	}
}

// hasNext reports whether the page links to a following page. An explicit
// null counts as absent.
func hasNext(page gjson.Result) bool {
	next := page.Get("_links.next")
	return next.Exists() && next.Type != gjson.Null
}

func pageURL(path string, limit, offset int) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%slimit=%d&offset=%d", path, sep, limit, offset)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
