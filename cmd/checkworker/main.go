// Command checkworker consumes check and comparison jobs from Kafka and runs
// them against the shared PostgreSQL stores. Run as many replicas as the
// topic has partitions; offsets are committed only once a run has finished
// or been recorded as failed.
//
// Usage:
//
//	go run ./cmd/checkworker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ABNmmd/PFE-FSA/internal/app"
	"github.com/ABNmmd/PFE-FSA/internal/worker"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/kafka"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
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

	topic := cfg.Kafka.Topics.CheckJobs
	if topic == "" {
		topic = worker.TopicJobs
	}
	slog.Info("starting check worker",
		"brokers", cfg.Kafka.Brokers,
		"topic", topic,
		"group", cfg.Kafka.ConsumerGroup,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	deps, err := app.Open(ctx, cfg, m, false)
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

	consumer := kafka.NewConsumer(cfg.Kafka, topic, worker.HandleMessage(chk))
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer stopped with error", "error", err)
	}
	slog.Info("check worker stopped")
}
