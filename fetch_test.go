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

package coalesce_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/openimsdk/coalesce"
)

func userIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%d", i)
	}
	return ids
}

func TestFetchCoalescerSingleKeyCacheHit(t *testing.T) {
	var calls int32
	fetcher := coalesce.FetcherFunc[string, string](func(ctx context.Context, keys []string, cache *coalesce.CacheWriter[string, string]) error {
		atomic.AddInt32(&calls, 1)
		for _, k := range keys {
			cache.Insert(k, "name-"+k)
		}
		return nil
	})
	c := coalesce.NewFetchCoalescer[string, string](fetcher, coalesce.WithDelay(5*time.Millisecond))

	v, err := c.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "name-user-1", v)

	v, err = c.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "name-user-1", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second load should hit the cache, not re-fetch")
}

func TestFetchCoalescerConcurrentCallersShareBatches(t *testing.T) {
	var calls int32
	var maxBatchSize int32
	var mu sync.Mutex
	ids := userIDs(90)

	fetcher := coalesce.FetcherFunc[string, string](func(ctx context.Context, keys []string, cache *coalesce.CacheWriter[string, string]) error {
		atomic.AddInt32(&calls, 1)
		mu.Lock()
		if int32(len(keys)) > maxBatchSize {
			maxBatchSize = int32(len(keys))
		}
		mu.Unlock()
		for _, k := range keys {
			cache.Insert(k, "name-"+k)
		}
		return nil
	})
	c := coalesce.NewFetchCoalescer[string, string](fetcher, coalesce.WithDelay(20*time.Millisecond))

	var g errgroup.Group
	for i := 0; i < 12; i++ {
		i := i
		g.Go(func() error {
			lo := (i * len(ids)) / 12
			hi := ((i + 1) * len(ids)) / 12
			values, err := c.LoadMany(context.Background(), ids[lo:hi])
			if err != nil {
				return err
			}
			for j, v := range values {
				if v != "name-"+ids[lo+j] {
					return fmt.Errorf("got %q for %q", v, ids[lo+j])
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Less(t, int(atomic.LoadInt32(&calls)), 12, "concurrent callers should coalesce into fewer than 12 batches")
	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, maxBatchSize, int32(1), "at least one batch should have combined multiple callers' keys")
}

func TestFetchCoalescerEagerBatchSizeFlushesEarly(t *testing.T) {
	var calls int32
	fetcher := coalesce.FetcherFunc[string, int](func(ctx context.Context, keys []string, cache *coalesce.CacheWriter[string, int]) error {
		atomic.AddInt32(&calls, 1)
		for i, k := range keys {
			cache.Insert(k, i)
		}
		return nil
	})
	c := coalesce.NewFetchCoalescer[string, int](fetcher,
		coalesce.WithDelay(time.Hour),
		coalesce.WithEagerBatchSize(50))

	keys := userIDs(100)
	start := time.Now()
	_, err := c.LoadMany(context.Background(), keys)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Less(t, elapsed, 500*time.Millisecond, "eager flush should fire long before the hour-long delay")
}

func TestFetchCoalescerNotFoundIsSticky(t *testing.T) {
	var calls int32
	fetcher := coalesce.FetcherFunc[string, string](func(ctx context.Context, keys []string, cache *coalesce.CacheWriter[string, string]) error {
		atomic.AddInt32(&calls, 1)
		return nil // nothing inserted: every key is NotFound
	})
	c := coalesce.NewFetchCoalescer[string, string](fetcher, coalesce.WithDelay(5*time.Millisecond))

	_, err := c.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, coalesce.ErrNotFound)

	_, err = c.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, coalesce.ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "NotFound should be memoized, not re-fetched")
}

func TestFetchCoalescerErrorThenRetrySucceeds(t *testing.T) {
	var calls int32
	fetcher := coalesce.FetcherFunc[string, string](func(ctx context.Context, keys []string, cache *coalesce.CacheWriter[string, string]) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return errors.New("backend unavailable")
		}
		for _, k := range keys {
			cache.Insert(k, "name-"+k)
		}
		return nil
	})
	c := coalesce.NewFetchCoalescer[string, string](fetcher, coalesce.WithDelay(5*time.Millisecond))

	_, err := c.Load(context.Background(), "user-1")
	var loadErr *coalesce.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, coalesce.LoadErrorFetch, loadErr.Kind)

	v, err := c.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "name-user-1", v)
}
