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

import "time"

const (
	// DefaultDelay is the maximum time a coalescer waits after its first
	// submission before flushing the batch, absent WithDelay.
	DefaultDelay = 10 * time.Millisecond
	// DefaultEagerBatchSize is the accumulated-size threshold that
	// triggers an early flush, absent WithEagerBatchSize or WithoutEagerFlush.
	DefaultEagerBatchSize = 100
)

// config holds the options shared by FetchCoalescer and ExecuteCoalescer.
type config struct {
	delay          time.Duration
	eagerBatchSize *int
	label          string
}

func defaultConfig() *config {
	size := DefaultEagerBatchSize
	return &config{
		delay:          DefaultDelay,
		eagerBatchSize: &size,
	}
}

// isFull reports whether a batch that has accumulated n items should
// flush immediately instead of waiting out the rest of the delay.
func (c *config) isFull(n int) bool {
	return c.eagerBatchSize != nil && n >= *c.eagerBatchSize
}

// Option configures a FetchCoalescer or ExecuteCoalescer at construction.
type Option func(*config)

// WithDelay sets the maximum time the worker waits after its first
// submission before flushing the accumulated batch. The timer is
// single-shot: it starts once, when the batch begins, and is not reset
// by later submissions joining the same batch.
func WithDelay(delay time.Duration) Option {
	return func(c *config) {
		c.delay = delay
	}
}

// WithEagerBatchSize flushes the batch as soon as its accumulated size
// (distinct pending keys for a fetch coalescer, pending values for an
// execute coalescer) reaches or exceeds n. It is a lower bound, not a
// cap: a single submission larger than n still flushes immediately with
// all of its items.
func WithEagerBatchSize(n int) Option {
	return func(c *config) {
		c.eagerBatchSize = &n
	}
}

// WithoutEagerFlush disables the eager size threshold entirely; the
// worker always waits out the full delay before flushing.
func WithoutEagerFlush() Option {
	return func(c *config) {
		c.eagerBatchSize = nil
	}
}

// WithLabel sets a diagnostic tag used in trace log lines. Purely
// informational. Defaults to a generated "unlabeled-..." identifier.
func WithLabel(label string) Option {
	return func(c *config) {
		c.label = label
	}
}
