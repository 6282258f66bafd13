// Command ingestd serves the signal digest HTTP API.
//
// It exposes the run trigger, run history and logs, editions and sources,
// and health checks. Runs execute synchronously inside the trigger request
// under a per-date lock.
//
// Usage:
//
//	go run ./cmd/ingestd [-config configs/development.yaml]
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/bootstrap"
	edhandler "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/edition/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/httpapi/middleware"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/httpapi/router"
	inghandler "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	migrate := flag.Bool("migrate", false, "apply the schema before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestd", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics, err := metrics.StartServer(fmt.Sprintf(":%d", cfg.Metrics.Port), reg)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	app, err := bootstrap.New(cfg, m)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if *migrate {
		if err := app.Migrate(ctx); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	limiter := ratelimit.New(time.Minute)
	defer limiter.Stop()

	if len(cfg.Admin.Secret) < config.MinAdminSecretLength {
		slog.Warn("admin secret not configured, run trigger disabled")
	}

	handler := router.New(router.Config{
		AdminSecret:       cfg.Admin.Secret,
		TriggersPerMinute: cfg.Admin.TriggersPerMinute,
		RequestTimeout:    cfg.Server.RequestTimeout,
		CORS:              apimw.DefaultCORSConfig(),
	}, router.Handlers{
		Ingestion: inghandler.New(app.Runner, app.Store),
		Editions:  edhandler.New(app.Store, app.Cache),
		Health:    app.Checker,
	}, m, limiter)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
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

	slog.Info("ingestd listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestd stopped")
}
