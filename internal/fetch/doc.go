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

// Package fetch walks paginated flag API listings and fans out per-item
// requests with bounded concurrency.
//
// A Paginator turns an offset-paginated listing into an ordered,
// duplicate-free list of item keys. A Fetcher then retrieves one document
// per key and hands each successful body to a caller-supplied handler.
// Both apply the same Policy to application errors (non-success statuses):
// Continue logs them and carries on, FailFast aborts. Transport failures
// always abort.
package fetch
