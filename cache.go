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

import "sync"

// loadState is the cache's two-case tagged value: either a key was
// loaded and has a value, or a prior batch ran and found nothing for it.
// There is no third "absent" case inside loadState itself; absence of an
// entry in cacheStore.entries is what means "not yet looked up".
type loadState[V any] struct {
	found bool
	value V
}

// cacheStore is the concurrent K -> loadState(V) map backing a
// FetchCoalescer. It is shared by every clone of a FetchCoalescer handle
// and by the handler invocation running inside the batch worker.
//
// A plain mutex-guarded map is used instead of sync.Map because
// markNotFound needs an atomic insert-if-absent that must never
// downgrade an existing Loaded entry to NotFound, which sync.Map's
// LoadOrStore alone cannot express once the stored type itself carries
// the Loaded/NotFound distinction.
type cacheStore[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]loadState[V]
}

func newCacheStore[K comparable, V any]() *cacheStore[K, V] {
	return &cacheStore[K, V]{
		entries: make(map[K]loadState[V]),
	}
}

// get returns the current load state for key, if any.
func (c *cacheStore[K, V]) get(key K) (loadState[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.entries[key]
	return st, ok
}

// insert stores Loaded(value), overwriting any prior state for key.
func (c *cacheStore[K, V]) insert(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = loadState[V]{found: true, value: value}
}

// markNotFound sets NotFound for every key in keys that has no entry
// yet. It never downgrades an existing Loaded entry.
func (c *cacheStore[K, V]) markNotFound(keys []K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if _, ok := c.entries[key]; !ok {
			c.entries[key] = loadState[V]{}
		}
	}
}

// CacheWriter is the scoped write-view a Fetcher receives for the
// duration of a single batch invocation. Inserts made through it are
// visible to concurrent readers immediately (the underlying store is
// shared), but the writer itself must not be retained past the Fetch
// call that received it: the worker marks every still-unresolved key in
// the batch as NotFound right after Fetch returns successfully, and
// that post-step assumes no further inserts are coming.
type CacheWriter[K comparable, V any] struct {
	store *cacheStore[K, V]
}

// Insert records value as the result for key. Safe to call concurrently
// with lookups from other FetchCoalescer handles sharing the same cache.
func (w *CacheWriter[K, V]) Insert(key K, value V) {
	w.store.insert(key, value)
}
