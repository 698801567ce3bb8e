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

	"github.com/google/uuid"
	"github.com/openimsdk/tools/log"
)

// newBatchID names one handler invocation for the trace log lines
// around it, the way pkg/tools/batcher names a distribution round with
// a triggerID, but generated with uuid since nothing here needs it to
// double as an operation ID for an outbound RPC.
func newBatchID() string {
	return uuid.NewString()
}

func traceWaitForFirst(ctx context.Context, label string) {
	log.ZDebug(ctx, "coalesce: worker waiting for first submission", "label", label)
}

func traceAccumulate(ctx context.Context, label string, pending int) {
	log.ZDebug(ctx, "coalesce: worker accumulating batch", "label", label, "pending", pending)
}

func traceBreak(ctx context.Context, label, cause string, pending int) {
	log.ZDebug(ctx, "coalesce: worker flushing batch", "label", label, "cause", cause, "pending", pending)
}

func traceHandlerStart(ctx context.Context, label, batchID string, size int) {
	log.ZDebug(ctx, "coalesce: invoking handler", "label", label, "batch", batchID, "size", size)
}

func traceHandlerDone(ctx context.Context, label, batchID string, size int, err error, elapsed time.Duration) {
	if err != nil {
		log.ZWarn(ctx, "coalesce: handler returned an error", err, "label", label, "batch", batchID, "size", size, "elapsed", elapsed)
		return
	}
	log.ZDebug(ctx, "coalesce: handler completed", "label", label, "batch", batchID, "size", size, "elapsed", elapsed)
}
