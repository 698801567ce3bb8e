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

// lookupCursor tracks, for a single Load/LoadMany call, which of the
// caller's keys have already been resolved from the cache. Duplicate
// keys in the input list resolve to the same slot.
type lookupCursor[K comparable, V any] struct {
	keys  []K               // caller order, duplicates allowed
	slots map[K]*loadState[V] // nil slot means "not yet looked up"
}

func newLookupCursor[K comparable, V any](keys []K) *lookupCursor[K, V] {
	slots := make(map[K]*loadState[V], len(keys))
	for _, key := range keys {
		if _, ok := slots[key]; !ok {
			slots[key] = nil
		}
	}
	return &lookupCursor[K, V]{keys: keys, slots: slots}
}

// refresh copies any new cache entries into slots that are still unresolved.
func (c *lookupCursor[K, V]) refresh(store *cacheStore[K, V]) {
	for key, slot := range c.slots {
		if slot != nil {
			continue
		}
		if st, ok := store.get(key); ok {
			found := st
			c.slots[key] = &found
		}
	}
}

// pendingKeys returns the distinct keys still unresolved after the most
// recent refresh.
func (c *lookupCursor[K, V]) pendingKeys() []K {
	pending := make([]K, 0, len(c.slots))
	for key, slot := range c.slots {
		if slot == nil {
			pending = append(pending, key)
		}
	}
	return pending
}

// resolve maps each input key, in caller order, to its cached value.
// Returns the first NotFound as a whole-call error.
func (c *lookupCursor[K, V]) resolve() ([]V, error) {
	result := make([]V, 0, len(c.keys))
	for _, key := range c.keys {
		slot := c.slots[key]
		if slot == nil || !slot.found {
			return nil, ErrNotFound
		}
		result = append(result, slot.value)
	}
	return result, nil
}

// lookup composes refresh and, if no keys are still pending, resolve.
// The bool return reports whether the lookup is done (err may still be
// ErrNotFound) or still pending on a fetch.
func (c *lookupCursor[K, V]) lookup(store *cacheStore[K, V]) (result []V, done bool, err error) {
	c.refresh(store)
	if len(c.pendingKeys()) > 0 {
		return nil, false, nil
	}
	result, err = c.resolve()
	return result, true, err
}
