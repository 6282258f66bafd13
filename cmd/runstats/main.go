// Command runstats consumes run-completed events from Kafka, aggregates them
// in memory (run counts by status, item and error totals, duration
// percentiles, top tracks) and serves them at GET /api/v1/runs/stats.
// Aggregates are snapshotted to PostgreSQL and restored on startup.
//
// Usage:
//
//	go run ./cmd/runstats [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/runstats"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/runstats/snapshot"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting runstats service", "port", cfg.RunStats.Port)

	if !cfg.Kafka.Enabled {
		slog.Error("runstats requires kafka; set kafka.enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	snapshots := snapshot.NewStore(db)
	aggregator := runstats.NewAggregator()
	if saved, err := snapshots.LatestSnapshot(ctx); err != nil {
		slog.Warn("failed to load stats snapshot, starting empty", "error", err)
	} else if saved != nil {
		aggregator.Restore(*saved)
		slog.Info("restored stats snapshot", "total_runs", saved.TotalRuns)
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RunEvents, runstats.HandleEvent(aggregator))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("run event consumer started", "topic", cfg.Kafka.Topics.RunEvents)

	saved := snapshots.StartPeriodicSave(ctx, aggregator, cfg.RunStats.SnapshotInterval)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, false))
	checker.Register("kafka", health.StaticCheck(health.StatusUp, "consumer active"))

	statsHandler := runstats.NewHandler(aggregator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/runs/stats", statsHandler.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.RunStats.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("runstats service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		stop()
	}

	<-consumerDone
	<-saved
	slog.Info("runstats service stopped")
}
