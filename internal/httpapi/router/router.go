// Package router wires the digest API routes and applies the middleware
// chain (RequestID → CORS → Metrics → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/auth/ratelimit"
	edhandler "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/edition/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/httpapi/middleware"
	inghandler "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/middleware"
)

type Config struct {
	AdminSecret       string
	TriggersPerMinute int
	RequestTimeout    time.Duration
	CORS              apimw.CORSConfig
}

type Handlers struct {
	Ingestion *inghandler.Handler
	Editions  *edhandler.Handler
	Health    *health.Checker
}

// New builds the HTTP handler.
//
// Route table:
//
//	POST   /api/v1/ingestion/runs              → trigger a run (admin, rate limited)
//	GET    /api/v1/ingestion/runs              → recent runs
//	GET    /api/v1/ingestion/runs/latest/log   → latest run log (text)
//	GET    /api/v1/ingestion/runs/{id}/log     → run log (text)
//	GET    /api/v1/editions                    → edition list
//	GET    /api/v1/editions/latest             → newest edition
//	GET    /api/v1/editions/{date}             → edition by date
//	GET    /api/v1/sources                     → configured sources
//	GET    /health/live, /health/ready         → health
//
// The trigger runs synchronously and is not subject to the request timeout.
func New(cfg Config, h Handlers, m *metrics.Metrics, limiter *ratelimit.Limiter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", h.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", h.Health.ReadyHandler())

	var trigger http.Handler = http.HandlerFunc(h.Ingestion.TriggerRun)
	trigger = apimw.RateLimit(limiter, cfg.TriggersPerMinute)(trigger)
	trigger = apimw.AdminAuth(cfg.AdminSecret)(trigger)
	mux.Handle("POST /api/v1/ingestion/runs", trigger)

	timeout := pkgmw.Timeout(cfg.RequestTimeout)
	read := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, timeout(fn))
	}
	read("GET /api/v1/ingestion/runs", h.Ingestion.ListRuns)
	read("GET /api/v1/ingestion/runs/latest/log", h.Ingestion.LatestRunLog)
	read("GET /api/v1/ingestion/runs/{id}/log", h.Ingestion.RunLog)
	read("GET /api/v1/sources", h.Ingestion.ListSources)
	read("GET /api/v1/editions", h.Editions.List)
	read("GET /api/v1/editions/latest", h.Editions.Latest)
	read("GET /api/v1/editions/{date}", h.Editions.ByDate)

	var chain http.Handler = mux
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = apimw.CORS(cfg.CORS)(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
