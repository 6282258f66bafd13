package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestReadPaths(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	paths := readPaths(now, 3)
	want := []string{
		"/api/v1/editions/2025-03-14",
		"/api/v1/editions/2025-03-13",
		"/api/v1/editions/2025-03-12",
	}
	tail := paths[len(paths)-3:]
	for i := range want {
		if tail[i] != want[i] {
			t.Errorf("path %d: expected %s, got %s", i, want[i], tail[i])
		}
	}
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 50); got != 5 {
		t.Errorf("p50: expected 5, got %d", got)
	}
	if got := percentile(sorted, 100); got != 10 {
		t.Errorf("p100: expected 10, got %d", got)
	}
	if got := percentile(nil, 95); got != 0 {
		t.Errorf("empty: expected 0, got %d", got)
	}
}

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.Record(time.Millisecond, http.StatusOK, nil)
	s.Record(time.Millisecond, http.StatusNotFound, nil)
	s.Record(time.Millisecond, http.StatusInternalServerError, nil)
	s.Record(0, 0, errors.New("dial failed"))

	if s.totalRequests.Load() != 4 || s.successCount.Load() != 2 || s.errorCount.Load() != 2 {
		t.Errorf("unexpected counters: total=%d ok=%d err=%d",
			s.totalRequests.Load(), s.successCount.Load(), s.errorCount.Load())
	}

	var buf bytes.Buffer
	if !printReport(&buf, s, time.Second) {
		t.Fatal("expected report to succeed")
	}
	if !strings.Contains(buf.String(), "500: 1") {
		t.Errorf("missing status breakdown:\n%s", buf.String())
	}
}

func TestRunLoadTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	stats := runLoadTest(Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Paths:       readPaths(time.Now(), 1),
	})
	if stats.successCount.Load() == 0 {
		t.Fatal("expected successful requests")
	}
}
