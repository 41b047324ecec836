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
	"strings"

	"github.com/getsentry/sentry-go"
)

// Syslog-style levels expressed as slog levels. The four slog built-ins keep
// their values so records from any slog logger compare correctly.
const (
	LevelDebug     = slog.LevelDebug
	LevelInfo      = slog.LevelInfo
	LevelNotice    = slog.Level(2)
	LevelWarning   = slog.LevelWarn
	LevelError     = slog.LevelError
	LevelCritical  = slog.Level(12)
	LevelAlert     = slog.Level(16)
	LevelEmergency = slog.Level(20)
)

// Breadcrumb types understood by Sentry.
const (
	BreadcrumbTypeDefault = "default"
	BreadcrumbTypeError   = "error"
)

// defaultLevelMapper converts slog levels into Sentry levels. Levels outside
// [LevelDebug, LevelEmergency] report as fatal so nothing is silently downgraded.
func defaultLevelMapper(level slog.Level) sentry.Level {
	switch {
	case level < LevelDebug, level > LevelEmergency:
		return sentry.LevelFatal
	case level < LevelInfo:
		return sentry.LevelDebug
	case level < LevelWarning:
		return sentry.LevelInfo
	case level < LevelError:
		return sentry.LevelWarning
	case level < LevelCritical:
		return sentry.LevelError
	default:
		return sentry.LevelFatal
	}
}

// breadcrumbType classifies a level as an error breadcrumb or a default one.
func breadcrumbType(level slog.Level) string {
	if level >= LevelError {
		return BreadcrumbTypeError
	}
	return BreadcrumbTypeDefault
}

// LevelName returns the upper-case name used in rendered lines, for example
// "NOTICE" or "EMERGENCY". Unnamed levels fall back to slog's notation.
func LevelName(level slog.Level) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	case LevelAlert:
		return "ALERT"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return level.String()
	}
}

// ParseLevel accepts the syslog-style names (case-insensitive, common
// abbreviations included) as well as slog's own notation such as "ERROR+2".
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error", "err":
		return LevelError, nil
	case "critical", "crit":
		return LevelCritical, nil
	case "alert":
		return LevelAlert, nil
	case "emergency", "emerg":
		return LevelEmergency, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("sentryadapter: unknown level %q", s)
	}
	return level, nil
}
