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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pjscruggs/slogcp"
)

// DefaultLinePattern is the pattern used for the log.formatted extra when no
// formatter is configured.
const DefaultLinePattern = "%channel%.%level_name%: %message% %context% %extra%"

// eventMessagePattern renders the Sentry event message. It is not configurable
// so issue grouping stays stable when formatters change.
const eventMessagePattern = "%channel%.%level_name%: %message%"

// Formatter renders a record to a display line.
type Formatter interface {
	Format(Record) string
}

// FormatterFunc adapts a plain function to Formatter.
type FormatterFunc func(Record) string

// Format calls f(r).
func (f FormatterFunc) Format(r Record) string { return f(r) }

// LineFormatter substitutes record fields into Pattern. Supported placeholders
// are %datetime%, %channel%, %level_name%, %message%, %context% and %extra%.
// Context and extra render as JSON objects holding their scalar values.
type LineFormatter struct {
	Pattern string
}

// Format implements Formatter.
func (f LineFormatter) Format(r Record) string {
	pattern := f.Pattern
	if pattern == "" {
		pattern = DefaultLinePattern
	}
	repl := strings.NewReplacer(
		"%datetime%", r.Time.Format(time.RFC3339),
		"%channel%", r.Channel,
		"%level_name%", LevelName(r.Level),
		"%message%", r.Message,
		"%context%", jsonScalars(r.Context),
		"%extra%", jsonScalars(r.Extra),
	)
	return repl.Replace(pattern)
}

func jsonScalars(m map[string]any) string {
	out := make(map[string]any, len(m))
	copyScalars(out, m)
	b, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// CloudFormatter renders records as Cloud Logging JSON through a slogcp
// handler, so the log.formatted extra matches what Cloud Logging ingests.
// It is safe for concurrent use.
type CloudFormatter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	handler *slogcp.Handler
}

// NewCloudFormatter creates a CloudFormatter backed by a fresh slogcp handler.
func NewCloudFormatter() (*CloudFormatter, error) {
	f := &CloudFormatter{}
	h, err := slogcp.NewHandler(&f.buf)
	if err != nil {
		return nil, err
	}
	f.handler = h
	return f, nil
}

// Format implements Formatter. Rendering failures yield an empty string.
func (f *CloudFormatter) Format(r Record) string {
	if f == nil || f.handler == nil {
		return ""
	}

	rec := slog.NewRecord(r.Time, r.Level, r.Message, 0)
	if r.Channel != "" {
		rec.AddAttrs(slog.String(channelKey, r.Channel))
	}
	for k, v := range r.Context {
		if s, ok := scalar(v); ok {
			rec.AddAttrs(slog.Any(k, s))
		}
	}
	for k, v := range r.Extra {
		if s, ok := scalar(v); ok {
			rec.AddAttrs(slog.Any(k, s))
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf.Reset()
	if err := f.handler.Handle(context.Background(), rec); err != nil {
		return ""
	}
	return strings.TrimRight(f.buf.String(), "\n")
}
