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

// Package metrics exposes adapter outcomes as Prometheus counters.
//
//	reg := prometheus.NewRegistry()
//	adapter := sentryadapter.New(hub, sentryadapter.WithObserver(metrics.New(reg)))
package metrics

import (
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	sentryadapter "github.com/pjscruggs/slog-sentry-adapter"
)

const (
	namespace = "sentry_adapter"

	resultOK    = "ok"
	resultError = "error"
)

// Collector implements sentryadapter.Observer.
type Collector struct {
	BatchesDropped *prometheus.CounterVec
	EventsCaptured *prometheus.CounterVec
	Breadcrumbs    prometheus.Counter
	Flushes        *prometheus.CounterVec
}

var _ sentryadapter.Observer = (*Collector)(nil)

// New creates the counters and registers them on reg. A nil reg registers on
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		BatchesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_dropped_total",
			Help:      "Batches that produced no Sentry event, by reason.",
		}, []string{"reason"}), // reason: below_level, rate_limited
		EventsCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_captured_total",
			Help:      "Sentry events captured, by Sentry level.",
		}, []string{"level"}),
		Breadcrumbs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breadcrumbs_total",
			Help:      "Breadcrumbs attached to captured events.",
		}),
		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Post-capture actions run, by result.",
		}, []string{"result"}),
	}
}

// BatchDropped implements sentryadapter.Observer.
func (c *Collector) BatchDropped(reason sentryadapter.DropReason) {
	c.BatchesDropped.WithLabelValues(string(reason)).Inc()
}

// EventCaptured implements sentryadapter.Observer.
func (c *Collector) EventCaptured(level sentry.Level, breadcrumbs int) {
	c.EventsCaptured.WithLabelValues(string(level)).Inc()
	c.Breadcrumbs.Add(float64(breadcrumbs))
}

// Flushed implements sentryadapter.Observer.
func (c *Collector) Flushed(err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	c.Flushes.WithLabelValues(result).Inc()
}
