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

// Package store persists exported documents as pretty-printed JSON files.
//
// Every write is a whole-file atomic replacement: the content goes to a
// temporary file in the target directory, is synced, and is renamed over
// the destination. A reader therefore sees either the previous document or
// the new one, never a truncated mix. Concurrent writes to distinct paths
// are safe.
package store
