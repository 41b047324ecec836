package metrics

import (
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	sentryadapter "github.com/pjscruggs/slog-sentry-adapter"
)

// TestCollectorCountsOutcomes verifies each observer callback lands in its counter.
func TestCollectorCountsOutcomes(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.BatchDropped(sentryadapter.DropBelowLevel)
	c.BatchDropped(sentryadapter.DropRateLimited)
	c.BatchDropped(sentryadapter.DropRateLimited)
	c.EventCaptured(sentry.LevelFatal, 8)
	c.EventCaptured(sentry.LevelError, 2)
	c.Flushed(nil)
	c.Flushed(errors.New("timeout"))

	if got := testutil.ToFloat64(c.BatchesDropped.WithLabelValues("below_level")); got != 1 {
		t.Fatalf("expected 1 below_level drop, got %v", got)
	}
	if got := testutil.ToFloat64(c.BatchesDropped.WithLabelValues("rate_limited")); got != 2 {
		t.Fatalf("expected 2 rate_limited drops, got %v", got)
	}
	if got := testutil.ToFloat64(c.EventsCaptured.WithLabelValues("fatal")); got != 1 {
		t.Fatalf("expected 1 fatal event, got %v", got)
	}
	if got := testutil.ToFloat64(c.Breadcrumbs); got != 10 {
		t.Fatalf("expected 10 breadcrumbs, got %v", got)
	}
	if got := testutil.ToFloat64(c.Flushes.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok flush, got %v", got)
	}
	if got := testutil.ToFloat64(c.Flushes.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed flush, got %v", got)
	}
}

// TestNewRegistersOnRegistry ensures a second registration on the same registry fails loudly.
func TestNewRegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
