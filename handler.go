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
	"log/slog"
	"strings"
	"sync"
)

// channelKey is the attribute key that selects a record's channel.
const channelKey = "channel"

// Handler is a slog.Handler that sends records to Sentry through an Adapter.
// Unbuffered handlers capture every record on its own; buffered handlers
// (WithBuffer) collect records and capture them as one batch.
type Handler struct {
	shared  *handlerState
	channel string
	extra   map[string]any
	groups  []string
}

// handlerState is shared by a handler and all of its WithAttrs/WithGroup clones.
type handlerState struct {
	mu      sync.Mutex
	adapter *Adapter
	limit   int
	pending []Record
}

type handlerConfig struct {
	channel string
	limit   int
}

// HandlerOption customizes handler construction.
type HandlerOption func(*handlerConfig)

// WithChannel sets the channel reported for records that do not carry a
// "channel" attribute.
func WithChannel(name string) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.channel = name
	}
}

// WithBuffer makes the handler collect up to limit records and submit them as
// a single batch. Flush or Close submits a partial batch.
func WithBuffer(limit int) HandlerOption {
	return func(cfg *handlerConfig) {
		if limit > 0 {
			cfg.limit = limit
		}
	}
}

// NewHandler creates a slog.Handler bound to adapter.
//
// Example:
//
//	h := sentryadapter.NewHandler(adapter, sentryadapter.WithBuffer(50))
//	defer h.Close()
//	logger := slog.New(h)
func NewHandler(adapter *Adapter, opts ...HandlerOption) *Handler {
	var cfg handlerConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Handler{
		shared:  &handlerState{adapter: adapter, limit: cfg.limit},
		channel: cfg.channel,
	}
}

// Enabled implements slog.Handler using the adapter's minimum level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	if h == nil || h.shared == nil {
		return false
	}
	return h.shared.adapter.Enabled(level)
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h == nil || h.shared == nil || h.shared.adapter == nil {
		return nil
	}
	rec := h.record(r)

	s := h.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit == 0 {
		return s.adapter.Submit(ctx, rec)
	}
	s.pending = append(s.pending, rec)
	if len(s.pending) < s.limit {
		return nil
	}
	return s.flushLocked(ctx)
}

// WithAttrs implements slog.Handler. Attributes become record extras; a
// "channel" attribute sets the channel instead.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := h.clone()
	clone.extra = make(map[string]any, len(h.extra)+len(attrs))
	for k, v := range h.extra {
		clone.extra[k] = v
	}
	prefix := groupPrefix(h.groups)
	for _, a := range attrs {
		if a.Key == channelKey && prefix == "" {
			clone.channel = a.Value.Resolve().String()
			continue
		}
		addAttr(clone.extra, prefix, a)
	}
	return clone
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(append([]string(nil), h.groups...), name)
	return clone
}

// Flush submits buffered records as one batch. It is a no-op for unbuffered
// handlers.
func (h *Handler) Flush(ctx context.Context) error {
	if h == nil || h.shared == nil {
		return nil
	}
	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()
	return h.shared.flushLocked(ctx)
}

// Close flushes pending records.
func (h *Handler) Close() error {
	return h.Flush(context.Background())
}

func (s *handlerState) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil
	return s.adapter.SubmitBatch(ctx, batch)
}

func (h *Handler) clone() *Handler {
	return &Handler{
		shared:  h.shared,
		channel: h.channel,
		extra:   h.extra,
		groups:  h.groups,
	}
}

// record converts a slog record into the adapter's representation.
func (h *Handler) record(r slog.Record) Record {
	rec := Record{
		Time:    r.Time,
		Channel: h.channel,
		Level:   r.Level,
		Message: r.Message,
		Extra:   h.extra,
	}
	if r.NumAttrs() == 0 {
		return rec
	}

	prefix := groupPrefix(h.groups)
	rec.Context = make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == channelKey && prefix == "" {
			rec.Channel = a.Value.Resolve().String()
			return true
		}
		addAttr(rec.Context, prefix, a)
		return true
	})
	return rec
}

// addAttr stores a into dst, flattening groups into dotted keys.
func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[prefix+a.Key] = v.Any()
}

func groupPrefix(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	return strings.Join(groups, ".") + "."
}
