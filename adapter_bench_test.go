// Copyright 2025-2026 Patrick J. Scruggs
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

package sentryadapter

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
)

// discardHub satisfies Hub while dropping every event.
type discardHub struct{}

// WithScope runs f against a throwaway scope.
func (discardHub) WithScope(f func(*sentry.Scope)) { f(sentry.NewScope()) }

// CaptureEvent drops the event.
func (discardHub) CaptureEvent(*sentry.Event) *sentry.EventID { return nil }

// Flush reports an immediate drain.
func (discardHub) Flush(time.Duration) bool { return true }

func benchBatch(n int) []Record {
	now := time.Now()
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			Time:    now,
			Channel: "bench",
			Level:   LevelInfo,
			Message: "step",
			Context: map[string]any{"i": i, "user": "abc", "ok": true},
		}
	}
	out[n-1].Level = LevelError
	out[n-1].Context = map[string]any{"exception": errors.New("boom")}
	return out
}

// BenchmarkSubmit measures the cost of a single-record event.
func BenchmarkSubmit(b *testing.B) {
	adapter := New(discardHub{}, WithPostCaptureAction(NoFlush))
	rec := benchBatch(1)[0]
	ctx := context.Background()
	for b.Loop() {
		_ = adapter.Submit(ctx, rec)
	}
}

// BenchmarkSubmitBatch measures a batch with breadcrumbs and an exception.
func BenchmarkSubmitBatch(b *testing.B) {
	adapter := New(discardHub{}, WithPostCaptureAction(NoFlush))
	records := benchBatch(20)
	ctx := context.Background()
	for b.Loop() {
		_ = adapter.SubmitBatch(ctx, records)
	}
}

// BenchmarkSubmitBelowLevel measures the no-op path for filtered batches.
func BenchmarkSubmitBelowLevel(b *testing.B) {
	adapter := New(discardHub{}, WithMinLevel(LevelCritical))
	records := benchBatch(20)
	ctx := context.Background()
	for b.Loop() {
		_ = adapter.SubmitBatch(ctx, records)
	}
}

// BenchmarkHandler measures slog records flowing through a buffered handler.
func BenchmarkHandler(b *testing.B) {
	h := NewHandler(New(discardHub{}, WithPostCaptureAction(NoFlush)), WithBuffer(50))
	logger := slog.New(h).With("service", "bench")
	for i := 0; b.Loop(); i++ {
		logger.Info("bench", "id", i, "user", "abc", "ok", true)
	}
	_ = h.Close()
}

// BenchmarkGRPCLogger measures field conversion for gRPC records.
func BenchmarkGRPCLogger(b *testing.B) {
	logger := NewLogger(New(discardHub{}, WithPostCaptureAction(NoFlush)))
	ctx := context.Background()
	for i := 0; b.Loop(); i++ {
		logger.Log(ctx, grpc_logging.LevelWarn, "bench",
			"id", i,
			"user", "abc",
			"ok", true,
		)
	}
}
