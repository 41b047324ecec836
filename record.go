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
	"fmt"
	"log/slog"
	"reflect"
	"time"
)

// DefaultExceptionKey is the context key checked for an attached error.
const DefaultExceptionKey = "exception"

// Record is a single log entry handed to the adapter. Records are treated as
// immutable; the adapter never writes to Context or Extra.
type Record struct {
	Time    time.Time
	Channel string
	Level   slog.Level
	Message string
	// Context holds the attributes logged with the record.
	Context map[string]any
	// Extra holds attributes bound to the logger rather than the call site.
	Extra map[string]any
}

// errorAt returns the error stored under key, or nil when the value is absent
// or is not an error.
func (r Record) errorAt(key string) error {
	v, ok := r.Context[key]
	if !ok {
		return nil
	}
	err, ok := v.(error)
	if !ok || err == nil || nilPointer(err) {
		return nil
	}
	return err
}

// scalarData merges Context and Extra into a map holding only scalar values.
// Extra wins when both carry the same key.
func (r Record) scalarData() map[string]any {
	if len(r.Context) == 0 && len(r.Extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(r.Context)+len(r.Extra))
	copyScalars(out, r.Context)
	copyScalars(out, r.Extra)
	return out
}

func copyScalars(dst, src map[string]any) {
	for k, v := range src {
		if s, ok := scalar(v); ok {
			dst[k] = s
		}
	}
}

// scalar reduces v to a value that serializes predictably, reporting false for
// values that should be dropped.
func scalar(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Duration:
		return val, true
	case time.Time:
		return val.Format(time.RFC3339Nano), true
	case error:
		if nilPointer(val) {
			return nil, false
		}
		return val.Error(), true
	case fmt.Stringer:
		if nilPointer(val) {
			return nil, false
		}
		return val.String(), true
	default:
		return nil, false
	}
}

// nilPointer reports whether v wraps a nil pointer, which would panic on a
// method call with a value receiver.
func nilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
