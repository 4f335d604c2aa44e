// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/beringai/beringchat/services/chat/auth"
	"github.com/beringai/beringchat/services/chat/config"
	"github.com/beringai/beringchat/services/chat/handlers"
	"github.com/beringai/beringchat/services/chat/middleware"
	"github.com/beringai/beringchat/services/chat/observability"
	"github.com/beringai/beringchat/services/chat/routes"
	"github.com/beringai/beringchat/services/chat/store"
	"github.com/beringai/beringchat/services/llm"
)

// initTracer sets up the OTLP trace exporter. Tracing is optional: an
// empty endpoint leaves the default no-op tracer provider in place.
func initTracer(otelEndpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("chat-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// seedBootstrapUser creates the initial admin account so the service is
// usable before any signup. Skipped when no password is configured.
func seedBootstrapUser(users store.UserStore, username, password string) {
	if password == "" {
		slog.Warn("BOOTSTRAP_PASSWORD not set, skipping bootstrap account")
		return
	}
	digest, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash bootstrap password: %v", err)
	}
	if err := users.Create(store.UserRecord{
		Username:       username,
		PasswordDigest: digest,
		Disabled:       false,
	}); err != nil {
		slog.Warn("Bootstrap account already present", "user", username)
		return
	}
	slog.Info("Seeded bootstrap account", "user", username)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.OTLPEndpoint != "" {
		cleanup, err := initTracer(cfg.OTLPEndpoint)
		if err != nil {
			log.Fatalf("Failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
	}

	observability.InitMetrics()

	issuer, err := auth.NewIssuer([]byte(cfg.JWTSecretKey), cfg.JWTAlgorithm, cfg.TokenTTL())
	if err != nil {
		log.Fatalf("Failed to create token issuer: %v", err)
	}

	llmClient, err := llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.DefaultModel)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	users := store.NewMemoryUserStore()
	seedBootstrapUser(users, cfg.BootstrapUser, cfg.BootstrapPassword)
	conversations := store.NewConversationStore()

	userHandler := handlers.NewUserHandler(users, issuer)
	chatHandler := handlers.NewChatHandler(llmClient, conversations, handlers.ChatDefaults{
		Model:       cfg.DefaultModel,
		Temperature: cfg.DefaultTemperature,
		MaxTokens:   cfg.DefaultMaxTokens,
	})

	router := gin.Default()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(otelgin.Middleware("chat-service"))
	// The service is consumed by a browser SPA; origins are left open
	// and should be narrowed per deployment.
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	routes.SetupRoutes(router, userHandler, chatHandler, issuer, users, cfg.DefaultModel)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting the chat service", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
