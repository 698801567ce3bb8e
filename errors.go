// Copyright © 2024 OpenIM. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package coalesce

import "fmt"

// LoadErrorKind identifies why FetchCoalescer.Load or LoadMany failed.
type LoadErrorKind string

const (
	// LoadErrorFetch means the Fetcher returned an error while loading the batch.
	LoadErrorFetch LoadErrorKind = "fetch_error"
	// LoadErrorNotFound means the Fetcher returned successfully but did not
	// insert a value for the requested key. Sticky: later loads for the
	// same key return LoadErrorNotFound without calling the Fetcher again.
	LoadErrorNotFound LoadErrorKind = "not_found"
	// LoadErrorSend means the coalescer's worker has already exited.
	LoadErrorSend LoadErrorKind = "send_error"
)

// LoadError is returned by FetchCoalescer.Load and LoadMany.
type LoadError struct {
	Kind LoadErrorKind
	Msg  string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("coalesce: %s: %s", e.Kind, e.Msg)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports whether target is a LoadError of the same Kind, so callers
// can write errors.Is(err, coalesce.ErrNotFound).
func (e *LoadError) Is(target error) bool {
	t, ok := target.(*LoadError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newFetchError(err error) *LoadError {
	return &LoadError{Kind: LoadErrorFetch, Msg: err.Error(), Err: err}
}

// ErrNotFound is the sentinel LoadError for a key that a Fetcher did not
// populate in a successful batch. Compare with errors.Is.
var ErrNotFound = &LoadError{Kind: LoadErrorNotFound, Msg: "value not found"}

// ErrLoadSend is the sentinel LoadError returned once the coalescer's
// worker has exited and can no longer accept submissions.
var ErrLoadSend = &LoadError{Kind: LoadErrorSend, Msg: "fetch worker is no longer running"}

// ExecuteErrorKind identifies why ExecuteCoalescer.Execute or
// ExecuteMany failed.
type ExecuteErrorKind string

const (
	// ExecuteErrorExecutor means the Executor returned an error while
	// running the batch.
	ExecuteErrorExecutor ExecuteErrorKind = "executor_error"
	// ExecuteErrorSend means the coalescer's worker has already exited.
	ExecuteErrorSend ExecuteErrorKind = "send_error"
)

// ExecuteError is returned by ExecuteCoalescer.Execute and ExecuteMany.
type ExecuteError struct {
	Kind ExecuteErrorKind
	Msg  string
	Err  error
}

func (e *ExecuteError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("coalesce: %s: %s", e.Kind, e.Msg)
}

func (e *ExecuteError) Unwrap() error { return e.Err }

func (e *ExecuteError) Is(target error) bool {
	t, ok := target.(*ExecuteError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newExecutorError(err error) *ExecuteError {
	return &ExecuteError{Kind: ExecuteErrorExecutor, Msg: err.Error(), Err: err}
}

// ErrExecuteSend is the sentinel ExecuteError returned once the
// coalescer's worker has exited and can no longer accept submissions.
var ErrExecuteSend = &ExecuteError{Kind: ExecuteErrorSend, Msg: "execute worker is no longer running"}
