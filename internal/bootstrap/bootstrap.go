// Package bootstrap assembles the ingestion runner and its collaborators
// from configuration. Both the HTTP service and the CLI build on it.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/edition/cache"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/classifier"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/lock"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/llm"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/resilience"
)

// App holds the wired pipeline. Optional parts (Redis, Kafka, the model)
// are nil when disabled.
type App struct {
	DB       *postgres.Client
	Store    *store.Store
	Sources  *source.Registry
	Runner   *ingestion.Runner
	Redis    *pkgredis.Client
	Cache    *cache.EditionCache
	Metrics  *metrics.Metrics
	Checker  *health.Checker
	closers  []func() error
	logger   *slog.Logger
}

// New connects to PostgreSQL and, when enabled, Redis and Kafka, then
// builds the runner. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics) (*App, error) {
	log := slog.Default().With("component", "bootstrap")
	app := &App{Metrics: m, Checker: health.NewChecker(), logger: log}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	app.DB = db
	app.closers = append(app.closers, db.Close)
	app.Store = store.New(db)
	app.Checker.Register("postgres", health.PingCheck(db.Ping, false))
	log.Info("connected to postgres")

	deps := ingestion.Deps{
		Store:   app.Store,
		Metrics: m,
	}

	if cfg.Redis.Enabled {
		rc, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = rc
		app.closers = append(app.closers, rc.Close)
		app.Cache = cache.New(rc, cfg.Redis.CacheTTL, m)
		deps.Cache = app.Cache
		deps.Locker = lock.NewRedis(rc, cfg.Redis.LockTTL)
		app.Checker.Register("redis", health.PingCheck(rc.Ping, true))
		log.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		app.Checker.Register("redis", health.StaticCheck(health.StatusUp, "disabled"))
	}

	if cfg.Kafka.Enabled {
		runs := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RunEvents)
		signals := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SignalEvents)
		app.closers = append(app.closers, runs.Close, signals.Close)
		deps.Publisher = publisher.New(runs, signals)
		log.Info("kafka producers initialized",
			"run_topic", cfg.Kafka.Topics.RunEvents,
			"signal_topic", cfg.Kafka.Topics.SignalEvents,
		)
	}

	fetcher := source.NewHTTPFetcher(&http.Client{Timeout: cfg.Ingestion.SourceTimeout}, cfg.Ingestion.UserAgent, cfg.Ingestion.FetchRetries)
	app.Sources = source.NewRegistry(source.Options{
		Fetcher:      fetcher,
		PerSourceCap: cfg.Ingestion.PerSourceCap,
	})
	deps.Sources = app.Sources

	model := buildModel(cfg.LLM, m, log)
	if model != nil {
		app.Checker.Register("llm", health.ConditionCheck(model.Suspended))
	} else {
		app.Checker.Register("llm", health.StaticCheck(health.StatusDegraded, "heuristic classification only"))
	}
	deps.Classifier = classifier.NewChain(model, m)

	app.Runner = ingestion.NewRunner(ingestion.Config{
		MaxItems:       cfg.Ingestion.MaxItems,
		SourceTimeout:  cfg.Ingestion.SourceTimeout,
		HeadlinerCount: cfg.Ingestion.HeadlinerCount,
		LogDir:         cfg.Ingestion.LogDir,
		Trace:          cfg.Tracing.Enabled,
	}, deps)

	return app, nil
}

// buildModel returns nil when no API key is configured, which routes every
// item to the heuristic classifier.
func buildModel(cfg config.LLMConfig, m *metrics.Metrics, log *slog.Logger) *classifier.Model {
	if cfg.APIKey == "" {
		log.Warn("llm api key not set, using heuristic classification")
		return nil
	}
	client, err := llm.New(llm.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
	})
	if err != nil {
		log.Error("llm client unavailable, using heuristic classification", "error", err)
		return nil
	}
	mc := classifier.ModelConfig{
		MaxTokens:         cfg.MaxTokens,
		Temperature:       cfg.Temperature,
		StrictTemperature: cfg.StrictTemperature,
		Timeout:           cfg.Timeout,
		BreakerThreshold:  cfg.BreakerThreshold,
		BreakerReset:      cfg.BreakerReset,
	}
	if m != nil {
		mc.OnBreakerChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	log.Info("llm classifier enabled", "model", client.Model())
	return classifier.NewModel(client, mc)
}

// Close releases every connection opened by New, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Migrate applies the schema.
func (a *App) Migrate(ctx context.Context) error {
	return a.Store.Migrate(ctx)
}
