// Command sentry-relay reads slog JSON lines from stdin and reports each batch
// to Sentry as one event with the rest of the batch as breadcrumbs.
//
//	myservice 2>&1 | SENTRY_DSN=... sentry-relay
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	sentryadapter "github.com/pjscruggs/slog-sentry-adapter"
	"github.com/pjscruggs/slog-sentry-adapter/internal/config"
	"github.com/pjscruggs/slog-sentry-adapter/internal/relay"
	"github.com/pjscruggs/slog-sentry-adapter/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("sentry-relay: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		os.Stderr.WriteString("sentry-relay: " + err.Error() + "\n")
		os.Exit(2)
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
	})
	if err != nil {
		logger.Error("cannot create sentry client", "error", err)
		os.Exit(1)
	}
	hub := sentry.NewHub(client, sentry.NewScope())
	defer hub.Flush(cfg.FlushTimeout)

	runID := uuid.NewString()
	opts := []sentryadapter.Option{
		sentryadapter.WithMinLevel(cfg.MinSlogLevel()),
		sentryadapter.WithSendContext(cfg.SendContext),
		sentryadapter.WithFlushTimeout(cfg.FlushTimeout),
		sentryadapter.WithScopeDecorator(func(_ context.Context, scope *sentry.Scope, _ sentryadapter.Record, _ *sentry.Event) {
			scope.SetTag("relay.run_id", runID)
		}),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, sentryadapter.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)))
	}

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, sentryadapter.WithObserver(metrics.New(reg)))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	adapter := sentryadapter.New(hub, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("relay started", "run_id", runID, "min_level", cfg.MinLevel, "batch_size", cfg.BatchSize)
	stats, err := relay.New(adapter, cfg.BatchSize, logger).Run(ctx, os.Stdin)
	if err != nil {
		logger.Error("relay error", "error", err)
	}
	logger.Info("relay stopped",
		"lines", stats.Lines,
		"batches", stats.Batches,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
