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

// Package export copies one flag project from the flag API to disk.
//
// A run writes, under <data_dir>/<project>:
//
//	project.json            the project, with its environments expanded
//	segment-<env>.json      the segment listing of each environment
//	flags.json              the ordered list of flag keys
//	flags/<key>.json        the full definition of each flag
//
// All requests share the client's rate gate. Application errors on
// segments and flags are handled by the configured fetch.Policy; a project
// that cannot be fetched, a transport failure, or a write failure ends the
// run.
package export
