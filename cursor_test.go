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
	"errors"
	"testing"
)

func TestLookupCursorPendingKeysDedupsDuplicates(t *testing.T) {
	store := newCacheStore[string, int]()
	cursor := newLookupCursor[string, int]([]string{"a", "b", "a", "c"})

	pending := cursor.pendingKeys()
	if len(pending) != 3 {
		t.Fatalf("got %d pending keys, want 3 distinct", len(pending))
	}
	_ = store
}

func TestLookupCursorLookupWaitsForAllDistinctKeys(t *testing.T) {
	store := newCacheStore[string, int]()
	store.insert("a", 1)
	cursor := newLookupCursor[string, int]([]string{"a", "b"})

	result, done, err := cursor.lookup(store)
	if done || err != nil || result != nil {
		t.Fatalf("expected lookup to remain pending on b, got result=%v done=%v err=%v", result, done, err)
	}

	store.insert("b", 2)
	result, done, err = cursor.lookup(store)
	if !done || err != nil {
		t.Fatalf("expected lookup to complete, got done=%v err=%v", done, err)
	}
	if len(result) != 2 || result[0] != 1 || result[1] != 2 {
		t.Fatalf("got %v, want [1 2]", result)
	}
}

func TestLookupCursorResolvePreservesCallerOrderAndDuplicates(t *testing.T) {
	store := newCacheStore[string, int]()
	store.insert("a", 1)
	store.insert("b", 2)
	cursor := newLookupCursor[string, int]([]string{"b", "a", "b"})

	result, done, err := cursor.lookup(store)
	if !done || err != nil {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if len(result) != 3 || result[0] != 2 || result[1] != 1 || result[2] != 2 {
		t.Fatalf("got %v, want [2 1 2]", result)
	}
}

func TestLookupCursorResolveReturnsNotFound(t *testing.T) {
	store := newCacheStore[string, int]()
	store.markNotFound([]string{"a"})
	cursor := newLookupCursor[string, int]([]string{"a"})

	_, done, err := cursor.lookup(store)
	if !done {
		t.Fatal("expected lookup to be done once a resolves to NotFound")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got err=%v, want ErrNotFound", err)
	}
}
