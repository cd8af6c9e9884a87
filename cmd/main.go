package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/KasumiMercury/primind-message-coalescing/internal/config"
	"github.com/KasumiMercury/primind-message-coalescing/internal/handler"
	"github.com/KasumiMercury/primind-message-coalescing/internal/health"
	"github.com/KasumiMercury/primind-message-coalescing/internal/infra/assistant"
	"github.com/KasumiMercury/primind-message-coalescing/internal/infra/drainrecorder"
	"github.com/KasumiMercury/primind-message-coalescing/internal/infra/repository"
	"github.com/KasumiMercury/primind-message-coalescing/internal/observability/logging"
	"github.com/KasumiMercury/primind-message-coalescing/internal/observability/metrics"
	"github.com/KasumiMercury/primind-message-coalescing/internal/observability/middleware"
	"github.com/KasumiMercury/primind-message-coalescing/internal/service/coalesce"
)

// Version is set via ldflags at build time
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs, err := initObservability(ctx)
	if err != nil {
		slog.Error("failed to initialize observability", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("observability shutdown error", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}

	slog.SetDefault(logging.NewLogger(cfg.LogLevel, logging.Module("message-coalescing")))

	if err := config.ValidateForRun(cfg); err != nil {
		slog.Error("configuration validation error", slog.String("error", err.Error()))
		return 1
	}

	httpMetrics, err := metrics.NewHTTPMetrics()
	if err != nil {
		slog.Error("failed to initialize HTTP metrics", slog.String("error", err.Error()))
		return 1
	}

	coalesceMetrics, err := metrics.NewCoalesceMetrics()
	if err != nil {
		slog.Error("failed to initialize coalesce metrics", slog.String("error", err.Error()))
		return 1
	}

	// Drain result recorder (InfluxDB for local, BigQuery for gcloud)
	recorderCfg := drainrecorder.LoadConfig()
	recorder, err := drainrecorder.NewRecorder(ctx, recorderCfg)
	if err != nil {
		slog.Error("failed to initialize drain result recorder", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			slog.Warn("failed to close drain result recorder", slog.String("error", err.Error()))
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		slog.Error("failed to instrument redis tracing",
			slog.String("event", "redis.otel.tracing.fail"),
			slog.String("error", err.Error()),
		)
		return 1
	}

	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		slog.Error("failed to instrument redis metrics",
			slog.String("event", "redis.otel.metrics.fail"),
			slog.String("error", err.Error()),
		)
		return 1
	}

	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect redis",
			slog.String("event", "redis.connect.fail"),
			slog.String("error", err.Error()),
		)
		return 1
	}

	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}()

	slog.Info("redis connected",
		slog.String("addr", cfg.Redis.Addr),
	)

	flowRepo := repository.NewFlowRepository(redisClient)
	processor := assistant.NewClient(cfg.Assistant.URL, cfg.Assistant.MaxRetries)

	coordinator := coalesce.NewCoordinator(flowRepo, processor, cfg.Coalesce, coalesceMetrics, recorder)
	defer coordinator.Shutdown()

	messageHandler := handler.NewMessageHandler(coordinator)

	r := gin.New()
	r.Use(middleware.Gin(middleware.GinConfig{
		SkipPaths:   []string{"/health", "/health/live", "/health/ready"},
		HTTPMetrics: httpMetrics,
	}))
	r.Use(middleware.PanicRecoveryGin())

	healthChecker := health.NewChecker(redisClient, Version)
	r.GET("/health/live", healthChecker.LiveHandler())
	r.GET("/health/ready", healthChecker.ReadyHandler())
	r.GET("/health", healthChecker.ReadyHandler())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/conversations/:id/messages", messageHandler.HandleAddMessage)
		v1.GET("/conversations/:id/status", messageHandler.HandleGetStatus)
		v1.GET("/conversations/:id/result", messageHandler.HandleGetResult)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Port),
			slog.Duration("message_delay", cfg.Coalesce.MessageDelay),
			slog.Int("max_batch_size", cfg.Coalesce.MaxBatchSize),
			slog.Duration("max_wait_time", cfg.Coalesce.MaxWaitTime),
		)
		serverErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown server", slog.String("error", err.Error()))
			return 1
		}

		slog.Info("server exited properly")
		return 0

	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return 0
		}
		slog.Error("server exited with error", slog.String("error", err.Error()))
		return 1
	}
}
