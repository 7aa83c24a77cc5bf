// Command plagiarismd serves the plagiarism report API.
//
// Compare and check requests create a pending report and are dispatched
// either to in-process goroutines or, with worker.mode=kafka, to the job
// topic consumed by cmd/checkworker. Clients poll the report endpoints for
// progress and results.
//
// Usage:
//
//	go run ./cmd/plagiarismd [-config configs/development.yaml] [-memory]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ABNmmd/PFE-FSA/internal/api"
	"github.com/ABNmmd/PFE-FSA/internal/app"
	"github.com/ABNmmd/PFE-FSA/internal/ratelimit"
	"github.com/ABNmmd/PFE-FSA/internal/worker"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/kafka"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	memory := flag.Bool("memory", false, "keep documents and reports in memory instead of PostgreSQL")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	closeLog, err := logger.Setup(cfg.Logging)
	if err != nil {
		slog.Warn("log file disabled", "error", err)
	}
	defer closeLog()

	if *memory && cfg.Worker.Mode == worker.ModeKafka {
		slog.Error("kafka workers cannot read in-memory stores; use worker.mode=goroutine with -memory")
		os.Exit(1)
	}

	slog.Info("starting plagiarism service",
		"port", cfg.Server.Port,
		"method", cfg.Detection.Method,
		"worker_mode", cfg.Worker.Mode,
		"memory", *memory,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	deps, err := app.Open(ctx, cfg, m, *memory)
	if err != nil {
		slog.Error("failed to open dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	chk, err := deps.NewChecker(ctx)
	if err != nil {
		slog.Error("failed to build checker", "error", err)
		os.Exit(1)
	}

	var (
		dispatcher worker.Dispatcher
		local      *worker.GoroutineDispatcher
	)
	switch cfg.Worker.Mode {
	case worker.ModeKafka:
		topic := cfg.Kafka.Topics.CheckJobs
		if topic == "" {
			topic = worker.TopicJobs
		}
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		dispatcher = worker.NewKafkaDispatcher(producer)
		slog.Info("dispatching jobs to kafka", "topic", topic, "brokers", cfg.Kafka.Brokers)
	default:
		local = worker.NewGoroutineDispatcher(chk, deps.Reports, cfg.Worker.MaxConcurrent)
		dispatcher = local
	}

	limiter := ratelimit.New(cfg.Server.SubmissionsPerMinute, time.Minute)
	defer limiter.Close()

	h := api.New(deps.Docs, deps.Reports, chk, dispatcher, cfg.Server.MaxUploadBytes)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(h, api.RouterOptions{
			Health:  deps.Health,
			Limiter: limiter,
			Metrics: m,
			Timeout: cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if local != nil {
			if err := local.Shutdown(shutdownCtx); err != nil {
				slog.Warn("in-flight checks abandoned", "error", err)
			}
		}
	}()

	slog.Info("plagiarism service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("plagiarism service stopped")
}
