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
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
)

// stopTimer stops t and drains its channel if it had already fired,
// so a timer can be discarded mid-wait without leaking a pending send.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// fetchSubmission is one load_many call's worth of pending keys, queued
// on the worker's request channel with a reply it will receive exactly
// once.
type fetchSubmission[K comparable] struct {
	keys  []K
	reply chan error
}

// fetchWorker is the single long-lived goroutine backing a
// FetchCoalescer. It owns all batch-accumulation state; nothing else
// may observe pendingKeys or replies while a batch is in flight.
type fetchWorker[K comparable, V any] struct {
	cfg      *config
	store    *cacheStore[K, V]
	fetcher  Fetcher[K, V]
	requests chan *fetchSubmission[K]
	// closed is closed once the worker has stopped servicing requests,
	// which only happens if the Fetcher panics. Go has no reference-
	// counted drop to retire the worker when every handle goes out of
	// scope, so absent a panic the worker runs for the lifetime of the
	// process, same as any other long-lived background goroutine in
	// this codebase.
	closed chan struct{}
}

func newFetchWorker[K comparable, V any](cfg *config, store *cacheStore[K, V], fetcher Fetcher[K, V]) *fetchWorker[K, V] {
	w := &fetchWorker[K, V]{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		requests: make(chan *fetchSubmission[K], 1),
		closed:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *fetchWorker[K, V]) run() {
	for w.round() {
	}
}

// submit hands sub to the worker, failing with ErrLoadSend instead of
// blocking forever if the worker has already stopped.
//
// A submission can still win the race and land in the buffered
// requests channel in the instant between the Fetcher panicking and
// closed being closed; shutdown's drain goroutine (started before
// round returns) is what keeps that submission from being stranded
// rather than this select picking the right branch.
func (w *fetchWorker[K, V]) submit(ctx context.Context, sub *fetchSubmission[K]) error {
	select {
	case w.requests <- sub:
		return nil
	case <-w.closed:
		return ErrLoadSend
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown closes closed and starts a goroutine that drains requests
// for the rest of the process's life, failing every submission that
// still manages to land there after round has given up reading it —
// including the one that can slip past submit's select in the window
// described above. Without this, that submission's caller would hang
// on its reply forever.
func (w *fetchWorker[K, V]) shutdown() {
	close(w.closed)
	go func() {
		for sub := range w.requests {
			sub.reply <- ErrLoadSend
		}
	}()
}

// round runs one wait/accumulate/invoke cycle (phases P1-P3). It
// returns false once the worker should stop, which happens only when
// the Fetcher panics; every reply still owed for the in-flight batch
// receives ErrLoadSend before round returns.
func (w *fetchWorker[K, V]) round() (ok bool) {
	ctx := context.Background()
	var replies []chan error

	defer func() {
		if r := recover(); r != nil {
			log.ZPanic(ctx, "coalesce: fetch handler panicked", errs.ErrPanic(r), "label", w.cfg.label)
			for _, reply := range replies {
				reply <- ErrLoadSend
			}
			w.shutdown()
			ok = false
		}
	}()

	traceWaitForFirst(ctx, w.cfg.label)
	first := <-w.requests

	pendingKeys := make(map[K]struct{})
	addSubmission := func(s *fetchSubmission[K]) {
		for _, key := range s.keys {
			pendingKeys[key] = struct{}{}
		}
		replies = append(replies, s.reply)
	}
	addSubmission(first)

	timer := time.NewTimer(w.cfg.delay)
accumulate:
	for {
		traceAccumulate(ctx, w.cfg.label, len(pendingKeys))
		if w.cfg.isFull(len(pendingKeys)) {
			stopTimer(timer)
			traceBreak(ctx, w.cfg.label, "full", len(pendingKeys))
			break accumulate
		}
		select {
		case sub := <-w.requests:
			addSubmission(sub)
		case <-timer.C:
			traceBreak(ctx, w.cfg.label, "timeout", len(pendingKeys))
			break accumulate
		}
	}

	keys := make([]K, 0, len(pendingKeys))
	for key := range pendingKeys {
		keys = append(keys, key)
	}

	batchID := newBatchID()
	traceHandlerStart(ctx, w.cfg.label, batchID, len(keys))
	start := time.Now()
	cache := &CacheWriter[K, V]{store: w.store}
	err := w.fetcher.Fetch(ctx, keys, cache)
	traceHandlerDone(ctx, w.cfg.label, batchID, len(keys), err, time.Since(start))

	var deliver error
	if err != nil {
		deliver = newFetchError(err)
	} else {
		w.store.markNotFound(keys)
	}

	for _, reply := range replies {
		reply <- deliver
	}
	return true
}

// executeSubmission is one execute_many call's worth of values, queued
// on the worker's request channel with a reply it will receive exactly
// once. The index at which its values begin in the concatenated batch is
// recorded by the worker in a pendingExecution when it is accumulated.
type executeSubmission[V any, R any] struct {
	values []V
	reply  chan executeResult[R]
}

type executeResult[R any] struct {
	values []R
	err    error
}

// executeWorker is the single long-lived goroutine backing an
// ExecuteCoalescer.
type executeWorker[V any, R any] struct {
	cfg      *config
	executor Executor[V, R]
	requests chan *executeSubmission[V, R]
	closed   chan struct{}
}

func newExecuteWorker[V any, R any](cfg *config, executor Executor[V, R]) *executeWorker[V, R] {
	w := &executeWorker[V, R]{
		cfg:      cfg,
		executor: executor,
		requests: make(chan *executeSubmission[V, R], 1),
		closed:   make(chan struct{}),
	}
	go w.run()
	return w
}

// submit mirrors fetchWorker.submit; see its comment for the race it leaves
// to shutdown's drain goroutine to close.
func (w *executeWorker[V, R]) submit(ctx context.Context, sub *executeSubmission[V, R]) error {
	select {
	case w.requests <- sub:
		return nil
	case <-w.closed:
		return ErrExecuteSend
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown mirrors fetchWorker.shutdown.
func (w *executeWorker[V, R]) shutdown() {
	close(w.closed)
	go func() {
		for sub := range w.requests {
			sub.reply <- executeResult[R]{err: ErrExecuteSend}
		}
	}()
}

// pendingExecution records where in the concatenated value slice one
// submission's values begin, so its result can be split back off after
// the executor returns.
type pendingExecution[V any, R any] struct {
	resultStartIndex int
	reply            chan executeResult[R]
}

func (w *executeWorker[V, R]) run() {
	for w.round() {
	}
}

func (w *executeWorker[V, R]) round() (ok bool) {
	ctx := context.Background()
	var pending []pendingExecution[V, R]

	defer func() {
		if r := recover(); r != nil {
			log.ZPanic(ctx, "coalesce: execute handler panicked", errs.ErrPanic(r), "label", w.cfg.label)
			for _, p := range pending {
				p.reply <- executeResult[R]{err: ErrExecuteSend}
			}
			w.shutdown()
			ok = false
		}
	}()

	traceWaitForFirst(ctx, w.cfg.label)
	first := <-w.requests

	var pendingValues []V
	addSubmission := func(s *executeSubmission[V, R]) {
		pending = append(pending, pendingExecution[V, R]{
			resultStartIndex: len(pendingValues),
			reply:            s.reply,
		})
		pendingValues = append(pendingValues, s.values...)
	}
	addSubmission(first)

	timer := time.NewTimer(w.cfg.delay)
accumulate:
	for {
		traceAccumulate(ctx, w.cfg.label, len(pendingValues))
		if w.cfg.isFull(len(pendingValues)) {
			stopTimer(timer)
			traceBreak(ctx, w.cfg.label, "full", len(pendingValues))
			break accumulate
		}
		select {
		case sub := <-w.requests:
			addSubmission(sub)
		case <-timer.C:
			traceBreak(ctx, w.cfg.label, "timeout", len(pendingValues))
			break accumulate
		}
	}

	batchID := newBatchID()
	traceHandlerStart(ctx, w.cfg.label, batchID, len(pendingValues))
	start := time.Now()
	result, err := w.executor.Execute(ctx, pendingValues)
	traceHandlerDone(ctx, w.cfg.label, batchID, len(pendingValues), err, time.Since(start))

	if err != nil {
		execErr := newExecutorError(err)
		for _, p := range pending {
			p.reply <- executeResult[R]{err: execErr}
		}
		return true
	}

	remaining := result
	for i := len(pending) - 1; i >= 0; i-- {
		idx := pending[i].resultStartIndex
		var slice []R
		if idx <= len(remaining) {
			slice = remaining[idx:]
			remaining = remaining[:idx]
		} else {
			slice = []R{}
		}
		pending[i].reply <- executeResult[R]{values: slice}
	}
	return true
}
