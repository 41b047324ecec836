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

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"os"

	"github.com/getsentry/sentry-go"
	sentryadapter "github.com/pjscruggs/slog-sentry-adapter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// A minimal runnable example that reports slog records and gRPC call logs to
// Sentry. Without SENTRY_DSN the client is disabled and events are dropped.
func main() {
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: os.Getenv("SENTRY_DSN")})
	if err != nil {
		log.Fatalf("sentry client: %v", err)
	}
	hub := sentry.NewHub(client, sentry.NewScope())

	adapter := sentryadapter.New(hub, sentryadapter.WithMinLevel(sentryadapter.LevelWarning))
	logger := slog.New(sentryadapter.NewHandler(adapter, sentryadapter.WithChannel("example")))

	grpcLogger := sentryadapter.NewLogger(adapter)
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcLogger.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcLogger.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", ":0")
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	go func() {
		if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			logger.Error("server stopped", "exception", serveErr)
		}
	}()
	defer grpcServer.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(sentryadapter.UnaryClientInterceptor(adapter)),
		grpc.WithChainStreamInterceptor(sentryadapter.StreamClientInterceptor(adapter)),
	)
	if err != nil {
		log.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	// An unknown service fails the call, which reports one event for it.
	healthClient := grpc_health_v1.NewHealthClient(conn)
	if _, err := healthClient.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "missing"}); err != nil {
		logger.Warn("health check failed", "exception", err)
	}
}
