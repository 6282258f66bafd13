package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/auth/ratelimit"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAdminAuth(t *testing.T) {
	const secret = "s3cret-value"
	tests := []struct {
		name    string
		secret  string
		headers map[string]string
		status  int
	}{
		{"header", secret, map[string]string{AdminHeader: secret}, http.StatusOK},
		{"bearer", secret, map[string]string{"Authorization": "Bearer " + secret}, http.StatusOK},
		{"missing", secret, nil, http.StatusUnauthorized},
		{"wrong", secret, map[string]string{AdminHeader: "s3cret-valuf"}, http.StatusUnauthorized},
		{"prefix only", secret, map[string]string{AdminHeader: "s3cret"}, http.StatusUnauthorized},
		{"short secret disables", "short", map[string]string{AdminHeader: "short"}, http.StatusForbidden},
		{"empty secret disables", "", map[string]string{AdminHeader: ""}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingestion/runs", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			AdminAuth(tt.secret)(okHandler).ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(DefaultCORSConfig())(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/editions", nil)
	req.Header.Set("Origin", "https://digest.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://digest.example" {
		t.Errorf("unexpected allow origin %q", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/editions", nil))
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("requests without Origin get no CORS headers")
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://digest.example"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	CORS(cfg)(okHandler).ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin must not be echoed")
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(time.Minute)
	defer limiter.Stop()
	h := RateLimit(limiter, 2)(okHandler)

	send := func(remote, fwd string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ingestion/runs", nil)
		req.RemoteAddr = remote
		if fwd != "" {
			req.Header.Set("X-Forwarded-For", fwd)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("10.0.0.1:1234", "") != http.StatusOK || send("10.0.0.1:5678", "") != http.StatusOK {
		t.Fatal("first two requests should pass")
	}
	if code := send("10.0.0.1:9999", ""); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}
	if code := send("10.0.0.1:1234", "203.0.113.7, 10.0.0.1"); code != http.StatusOK {
		t.Errorf("forwarded client should have its own bucket, got %d", code)
	}
}
