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

// FetchCoalescer coalesces concurrent lookups for the same key into a
// single batched call to a Fetcher, and memoizes both found values and
// NotFound results for the lifetime of the coalescer.
//
// A FetchCoalescer is cheap to copy: it holds only pointers to the
// shared cache and the background worker, so it can be passed by value
// the way the teacher passes its rpccache handles around.
type FetchCoalescer[K comparable, V any] struct {
	cfg    *config
	store  *cacheStore[K, V]
	worker *fetchWorker[K, V]
}

// NewFetchCoalescer starts a background worker bound to fetcher and
// returns a handle to it. The worker runs until the process exits or
// fetcher panics; there is no explicit shutdown method, matching the
// lifetime of the other singleton caches in this codebase.
func NewFetchCoalescer[K comparable, V any](fetcher Fetcher[K, V], opts ...Option) *FetchCoalescer[K, V] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.label == "" {
		cfg.label = "unlabeled-fetch-" + idutil.OperationIDGenerator()
	}
	store := newCacheStore[K, V]()
	return &FetchCoalescer[K, V]{
		cfg:    cfg,
		store:  store,
		worker: newFetchWorker(cfg, store, fetcher),
	}
}

// Load resolves a single key, coalescing with any other Load/LoadMany
// calls the worker happens to be accumulating at the time.
func (c *FetchCoalescer[K, V]) Load(ctx context.Context, key K) (V, error) {
	values, err := c.LoadMany(ctx, []K{key})
	var zero V
	if err != nil {
		return zero, err
	}
	return values[0], nil
}

// LoadMany resolves every key in keys, in the order given (duplicates
// resolve to the same value). If any key is cached, no batch submission
// is made for it; if all keys are already cached, LoadMany returns
// without touching the worker at all.
func (c *FetchCoalescer[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, error) {
	cursor := newLookupCursor[K, V](keys)
	if result, done, err := cursor.lookup(c.store); done {
		return result, err
	}

	reply := make(chan error, 1)
	sub := &fetchSubmission[K]{keys: cursor.pendingKeys(), reply: reply}

	if err := c.worker.submit(ctx, sub); err != nil {
		return nil, err
	}

	select {
	case err := <-reply:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result, _, err := cursor.lookup(c.store)
	return result, err
}
