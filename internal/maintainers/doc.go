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

// Package maintainers rewrites the maintainerId of exported flag documents.
//
// The mapping is a flat JSON object from old maintainer IDs to new ones.
// Every flag document whose top-level maintainerId is a mapping key is
// rewritten in place with only that value changed; every other byte of
// the file is kept. Documents without a matching maintainerId are not
// written at all.
package maintainers
