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

// Package sentryadapter reports [log/slog] records to Sentry through
// [github.com/getsentry/sentry-go]. A batch of records becomes a single Sentry
// event: the most severe record (the earliest one on ties) drives the event's
// level and message, and every record of the batch, the primary included, is
// attached as a breadcrumb in the order it was logged. Batches with nothing at
// or above the minimum level make no Sentry calls at all.
//
// Levels follow the syslog-style ladder LevelDebug < LevelInfo < LevelNotice <
// LevelWarning < LevelError < LevelCritical < LevelAlert < LevelEmergency,
// expressed as slog levels so the four slog built-ins line up. Levels outside
// that range report as fatal.
//
// Quick start:
//
//	client, _ := sentry.NewClient(sentry.ClientOptions{Dsn: dsn})
//	hub := sentry.NewHub(client, sentry.NewScope())
//
//	adapter := sentryadapter.New(hub, sentryadapter.WithMinLevel(sentryadapter.LevelWarning))
//
//	// One event per record.
//	logger := slog.New(sentryadapter.NewHandler(adapter))
//
//	// One event per request, earlier records as breadcrumbs.
//	h := sentryadapter.NewHandler(adapter, sentryadapter.WithBuffer(100))
//	reqLogger := slog.New(h)
//	defer h.Close()
//
// The helpers UnaryServerInterceptor, StreamServerInterceptor,
// UnaryClientInterceptor and StreamClientInterceptor plug the adapter into
// [github.com/grpc-ecosystem/go-grpc-middleware/v2] logging interceptors and
// report each call's log lines as one event.
//
// Customization hooks WithScopeDecorator and WithPostCaptureAction replace
// subclass overrides: the first runs inside the capture scope, the second
// after it (by default it flushes the hub). WithSendContext toggles copying
// the primary record's context into event extras.
package sentryadapter
