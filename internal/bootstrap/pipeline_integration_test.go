//go:build integration

// Run with:
//
//	go test -v -tags=integration ./internal/bootstrap/...
package bootstrap

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/auth/ratelimit"
	edhandler "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/edition/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/httpapi/middleware"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/httpapi/router"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion"
	inghandler "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
)

const testSecret = "integration-secret"

// newTestApp builds the pipeline against TEST_POSTGRES_* and skips the test
// when PostgreSQL is unavailable.
func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Postgres.Host = envOrDefault("TEST_POSTGRES_HOST", "localhost")
	cfg.Postgres.Port = envOrDefaultInt("TEST_POSTGRES_PORT", 5432)
	cfg.Postgres.Database = envOrDefault("TEST_POSTGRES_DB", "signaldigest_test")
	cfg.Postgres.User = envOrDefault("TEST_POSTGRES_USER", "signaldigest")
	cfg.Postgres.Password = envOrDefault("TEST_POSTGRES_PASSWORD", "localdev")
	cfg.Redis.Enabled = false
	cfg.Kafka.Enabled = false
	cfg.LLM.APIKey = ""
	cfg.Ingestion.LogDir = t.TempDir()

	app, err := New(cfg, nil)
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { app.Close() })

	if err := app.Migrate(t.Context()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	_, err = app.DB.DB.ExecContext(t.Context(),
		`TRUNCATE signals, editions, ingestion_runs, sources, run_stats_snapshots`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return app
}

func feedServer(t *testing.T, now time.Time) *httptest.Server {
	t.Helper()
	pub := now.Add(-2 * time.Hour).Format(time.RFC1123Z)
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Acme AI</title>
<item><title>Acme releases Model X with 1M context window</title>
<link>https://acme.example/blog/model-x?utm_source=rss</link>
<description>Model X ships today with a 1M token context window and lower pricing.</description>
<pubDate>%[1]s</pubDate></item>
<item><title>Acme SDK 2.0 adds streaming tool calls</title>
<link>https://acme.example/blog/sdk-2</link>
<description>The SDK now streams tool call arguments.</description>
<pubDate>%[1]s</pubDate></item>
<item><title>Acme SDK 2.0 adds streaming tool calls</title>
<link>https://acme.example/blog/sdk-2/</link>
<description>Duplicate entry.</description>
<pubDate>%[1]s</pubDate></item>
</channel></rss>`, pub)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPipelineEndToEnd(t *testing.T) {
	app := newTestApp(t)
	now := time.Now().UTC()
	date := now.Format(time.DateOnly)
	feed := feedServer(t, now)

	_, err := app.Store.UpsertSource(t.Context(), signal.Source{
		Name:          "Acme blog",
		Type:          signal.SourceRSS,
		Identifier:    feed.URL,
		ProviderLabel: "Acme",
		Tier:          1,
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("upsert source: %v", err)
	}

	result, err := app.Runner.Trigger(t.Context(), ingestion.Request{Date: date, TriggeredBy: "integration"})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Status == signal.RunFailed {
		t.Fatalf("run failed: %s", result.ErrorMessage)
	}
	if result.ItemsFetched < 2 || result.ItemsCreated != 2 {
		t.Errorf("expected 2 signals after dedup, got fetched=%d created=%d", result.ItemsFetched, result.ItemsCreated)
	}

	limiter := ratelimit.New(time.Minute)
	t.Cleanup(limiter.Stop)
	srv := httptest.NewServer(router.New(router.Config{
		AdminSecret:       testSecret,
		TriggersPerMinute: 5,
		RequestTimeout:    10 * time.Second,
		CORS:              apimw.DefaultCORSConfig(),
	}, router.Handlers{
		Ingestion: inghandler.New(app.Runner, app.Store),
		Editions:  edhandler.New(app.Store, app.Cache),
		Health:    app.Checker,
	}, nil, limiter))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/editions/" + date)
	if err != nil {
		t.Fatalf("get edition: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var edition signal.Edition
	if err := json.NewDecoder(resp.Body).Decode(&edition); err != nil {
		t.Fatalf("decode edition: %v", err)
	}
	if len(edition.Signals) != result.ItemsCreated {
		t.Errorf("expected %d signals, got %d", result.ItemsCreated, len(edition.Signals))
	}

	run, err := app.Store.RunLog(t.Context(), result.RunID)
	if err != nil {
		t.Fatalf("run log: %v", err)
	}
	if run.Status != result.Status || run.LogText == "" {
		t.Errorf("unexpected stored run: status=%s log=%d bytes", run.Status, len(run.LogText))
	}

	// A second run replaces the edition rather than appending to it.
	if _, err := app.Runner.Trigger(t.Context(), ingestion.Request{Date: date, TriggeredBy: "integration"}); err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	again, err := app.Store.EditionByDate(t.Context(), date)
	if err != nil {
		t.Fatalf("edition by date: %v", err)
	}
	if len(again.Signals) != result.ItemsCreated {
		t.Errorf("expected edition to be replaced with %d signals, got %d", result.ItemsCreated, len(again.Signals))
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
