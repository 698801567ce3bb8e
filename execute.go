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

import (
	"context"

	"github.com/openimsdk/tools/utils/idutil"
)

// ExecuteCoalescer coalesces concurrent calls into positional batches
// run through an Executor. Unlike FetchCoalescer, nothing is cached:
// every call contributes fresh values to the next batch.
type ExecuteCoalescer[V any, R any] struct {
	cfg    *config
	worker *executeWorker[V, R]
}

// NewExecuteCoalescer starts a background worker bound to executor and
// returns a handle to it.
func NewExecuteCoalescer[V any, R any](executor Executor[V, R], opts ...Option) *ExecuteCoalescer[V, R] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.label == "" {
		cfg.label = "unlabeled-execute-" + idutil.OperationIDGenerator()
	}
	return &ExecuteCoalescer[V, R]{
		cfg:    cfg,
		worker: newExecuteWorker(cfg, executor),
	}
}

// Execute runs a single value through the next batch and returns its
// result. The bool return reports whether the executor produced a
// result for this value at all: a batch result shorter than the
// submitted values is a legitimate outcome (mirrors the spec's
// Option<R>), not an error, and is reported as (zero, false, nil)
// rather than folded into ExecuteError.
func (c *ExecuteCoalescer[V, R]) Execute(ctx context.Context, value V) (R, bool, error) {
	results, err := c.ExecuteMany(ctx, []V{value})
	var zero R
	if err != nil {
		return zero, false, err
	}
	if len(results) == 0 {
		return zero, false, nil
	}
	return results[0], true, nil
}

// ExecuteMany runs values through the next batch, returning their
// results in the same order. If the batch executor's result is shorter
// than the submitted values, the missing tail is simply absent from the
// returned slice rather than an error.
func (c *ExecuteCoalescer[V, R]) ExecuteMany(ctx context.Context, values []V) ([]R, error) {
	reply := make(chan executeResult[R], 1)
	sub := &executeSubmission[V, R]{values: values, reply: reply}

	if err := c.worker.submit(ctx, sub); err != nil {
		return nil, err
	}

	select {
	case result := <-reply:
		if result.err != nil {
			return nil, result.err
		}
		return result.values, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
