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

import "context"

// Fetcher retrieves the values associated with a batch of keys,
// inserting (key, value) pairs into cache for every key that resolves.
// Keys for which nothing is inserted are treated as NotFound once Fetch
// returns successfully.
//
// A Fetcher may also insert entries for keys outside the requested
// batch (side-populating the cache); such inserts are cached, and a later
// Load/LoadMany that asks for one of those keys is answered from the
// cache without calling Fetch for it. A concurrent call that had already
// submitted that key before the insert still sends it to the Fetcher.
//
// An error aborts the whole batch: every pending Load/LoadMany call that
// fed into it receives a LoadError of kind LoadErrorFetch carrying the
// stringified error. Inserts made before the error is returned remain
// cached.
type Fetcher[K comparable, V any] interface {
	Fetch(ctx context.Context, keys []K, cache *CacheWriter[K, V]) error
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc[K comparable, V any] func(ctx context.Context, keys []K, cache *CacheWriter[K, V]) error

func (f FetcherFunc[K, V]) Fetch(ctx context.Context, keys []K, cache *CacheWriter[K, V]) error {
	return f(ctx, keys, cache)
}

// Executor runs a batch of values and returns their results. The i-th
// element of the returned slice (when present) is the result for the
// i-th input value; a shorter result slice means "no result at
// positions >= len(result)". There is no NotFound for execute: a
// shorter result slice is the only signal of positional absence.
//
// An error aborts the whole batch: every pending Execute/ExecuteMany
// call that fed into it receives an ExecuteError of kind
// ExecuteErrorExecutor carrying the stringified error.
type Executor[V any, R any] interface {
	Execute(ctx context.Context, values []V) ([]R, error)
}

// ExecutorFunc adapts a function to an Executor.
type ExecutorFunc[V any, R any] func(ctx context.Context, values []V) ([]R, error)

func (f ExecutorFunc[V, R]) Execute(ctx context.Context, values []V) ([]R, error) {
	return f(ctx, values)
}
