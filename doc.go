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

// Package coalesce implements a request-coalescing and batching layer
// for fan-in workloads: many concurrent callers asking for individual
// keys or submitting individual values, backed by a handler that only
// knows how to operate on a batch.
//
// Two flavors are provided:
//
//   - FetchCoalescer: idempotent key-to-value lookups with an in-memory
//     cache and "not found" memoization. Backed by a Fetcher.
//   - ExecuteCoalescer: positional value-to-result batch execution with
//     no caching or deduplication. Backed by an Executor.
//
// Both share the same worker: a single background goroutine that
// accumulates submissions arriving on a request channel, flushes either
// after a fixed delay or once an eager size threshold is reached, and
// fans the batch result back out to every waiting caller.
//
// A coalescer is meant to be built once and shared for the life of the
// process, the way pkg/rpccache's caches are: it starts one background
// goroutine that never stops on its own, and its fetch cache has no
// eviction or TTL. See FetchCoalescer for details.
//
//	fetcher := coalesce.FetcherFunc[UserID, User](func(ctx context.Context, ids []UserID, cache *coalesce.CacheWriter[UserID, User]) error {
//		users, err := db.GetUsersByIDs(ctx, ids)
//		if err != nil {
//			return err
//		}
//		for _, u := range users {
//			cache.Insert(u.ID, u)
//		}
//		return nil
//	})
//	users := coalesce.NewFetchCoalescer[UserID, User](fetcher)
//	user, err := users.Load(ctx, someID)
package coalesce // import "github.com/openimsdk/coalesce"
