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

package apierror

import "fmt"

// RetryError records how many attempts were made before an error was returned.
type RetryError struct {
	Err         error
	Attempt     int
	MaxAttempts int
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%v (attempt %d/%d)", e.Err, e.Attempt, e.MaxAttempts)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// WithRetryInfo decorates err with the attempt counter. A nil err stays nil.
func WithRetryInfo(err error, attempt, maxAttempts int) error {
	if err == nil {
		return nil
	}
	return &RetryError{Err: err, Attempt: attempt, MaxAttempts: maxAttempts}
}

// UserActionError pairs an error with a hint telling the operator what to do.
type UserActionError struct {
	Err    error
	Action string
}

func (e *UserActionError) Error() string {
	return fmt.Sprintf("%v. %s", e.Err, e.Action)
}

func (e *UserActionError) Unwrap() error {
	return e.Err
}

// WithUserAction decorates err with an actionable hint. A nil err stays nil.
func WithUserAction(err error, action string) error {
	if err == nil {
		return nil
	}
	return &UserActionError{Err: err, Action: action}
}
