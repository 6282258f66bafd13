package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStartServerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.RunsTotal.WithLabelValues("SUCCEEDED").Inc()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	shutdown, err := StartServer(addr, reg)
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	defer shutdown(context.Background())

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "ingestion_runs_total") {
		t.Fatalf("expected ingestion_runs_total in exposition, got %d %s", resp.StatusCode, body)
	}
}

func TestStartServerReportsTakenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer ln.Close()

	if _, err := StartServer(ln.Addr().String(), prometheus.NewRegistry()); err == nil {
		t.Fatal("expected an error for a port already in use")
	}
}
