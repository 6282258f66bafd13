// Package runstats aggregates RunCompleted events into running totals that
// dashboards read over HTTP and that are periodically snapshotted to
// PostgreSQL.
package runstats

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/kafka"
)

// durationWindow bounds the samples kept for percentiles.
const durationWindow = 1000

type Stats struct {
	TotalRuns            int64            `json:"total_runs"`
	ByStatus             map[string]int64 `json:"by_status"`
	ItemsFetched         int64            `json:"items_fetched"`
	ItemsCreated         int64            `json:"items_created"`
	SourceErrors         int64            `json:"source_errors"`
	ClassificationErrors int64            `json:"classification_errors"`
	HotSignals           int64            `json:"hot_signals"`
	NotableSignals       int64            `json:"notable_signals"`
	QuietSignals         int64            `json:"quiet_signals"`
	TotalDurationMs      int64            `json:"total_duration_ms"`
	AvgDurationMs        float64          `json:"avg_duration_ms"`
	P50DurationMs        int64            `json:"p50_duration_ms"`
	P95DurationMs        int64            `json:"p95_duration_ms"`
	TopTracks            []TrackCount     `json:"top_tracks"`
	LastRun              *LastRun         `json:"last_run,omitempty"`
}

type TrackCount struct {
	Track string `json:"track"`
	Count int64  `json:"count"`
}

type LastRun struct {
	RunID       string    `json:"run_id"`
	EditionDate string    `json:"edition_date"`
	Status      string    `json:"status"`
	FinishedAt  time.Time `json:"finished_at"`
}

type Aggregator struct {
	mu          sync.RWMutex
	totalRuns   int64
	byStatus    map[string]int64
	fetched     int64
	created     int64
	sourceErrs  int64
	classifErrs int64
	hot         int64
	notable     int64
	quiet       int64
	durationSum int64
	durations   []int64
	trackCounts map[string]int64
	lastRun     *LastRun

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byStatus:    make(map[string]int64),
		durations:   make([]int64, 0, durationWindow),
		trackCounts: make(map[string]int64),
		logger:      slog.Default().With("component", "runstats-aggregator"),
	}
}

// HandleEvent decodes RunCompleted messages into agg. Other event types and
// undecodable payloads are skipped so the consumer keeps its position.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.Type != "" && msg.Type != ingestion.EventRunCompleted {
			return nil
		}
		event, err := kafka.DecodeJSON[ingestion.RunCompletedEvent](msg.Value)
		if err != nil {
			agg.logger.Error("failed to decode run event", "error", err, "key", string(msg.Key))
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event ingestion.RunCompletedEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRuns++
	a.byStatus[string(event.Status)]++
	a.fetched += int64(event.ItemsFetched)
	a.created += int64(event.ItemsCreated)
	a.sourceErrs += int64(event.SourceErrors)
	a.classifErrs += int64(event.ClassificationErrors)
	a.hot += int64(event.HotCount)
	a.notable += int64(event.NotableCount)
	a.quiet += int64(event.QuietCount)
	a.durationSum += event.DurationMs
	if len(a.durations) == durationWindow {
		a.durations = a.durations[1:]
	}
	a.durations = append(a.durations, event.DurationMs)
	for _, track := range event.TopTracks {
		a.trackCounts[track]++
	}
	if a.lastRun == nil || !event.FinishedAt.Before(a.lastRun.FinishedAt) {
		a.lastRun = &LastRun{
			RunID:       event.RunID,
			EditionDate: event.EditionDate,
			Status:      string(event.Status),
			FinishedAt:  event.FinishedAt,
		}
	}
}

// Restore seeds the totals from a snapshot. Percentile samples are not
// part of a snapshot and start empty.
func (a *Aggregator) Restore(s Stats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRuns = s.TotalRuns
	a.byStatus = make(map[string]int64, len(s.ByStatus))
	for k, v := range s.ByStatus {
		a.byStatus[k] = v
	}
	a.fetched = s.ItemsFetched
	a.created = s.ItemsCreated
	a.sourceErrs = s.SourceErrors
	a.classifErrs = s.ClassificationErrors
	a.hot = s.HotSignals
	a.notable = s.NotableSignals
	a.quiet = s.QuietSignals
	a.durationSum = s.TotalDurationMs
	a.trackCounts = make(map[string]int64, len(s.TopTracks))
	for _, tc := range s.TopTracks {
		a.trackCounts[tc.Track] = tc.Count
	}
	a.lastRun = s.LastRun
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalRuns:            a.totalRuns,
		ByStatus:             make(map[string]int64, len(a.byStatus)),
		ItemsFetched:         a.fetched,
		ItemsCreated:         a.created,
		SourceErrors:         a.sourceErrs,
		ClassificationErrors: a.classifErrs,
		HotSignals:           a.hot,
		NotableSignals:       a.notable,
		QuietSignals:         a.quiet,
		TotalDurationMs:      a.durationSum,
		TopTracks:            topN(a.trackCounts, 10),
	}
	for k, v := range a.byStatus {
		stats.ByStatus[k] = v
	}
	if a.totalRuns > 0 {
		stats.AvgDurationMs = float64(a.durationSum) / float64(a.totalRuns)
	}
	if len(a.durations) > 0 {
		sorted := make([]int64, len(a.durations))
		copy(sorted, a.durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		stats.P50DurationMs = percentile(sorted, 50)
		stats.P95DurationMs = percentile(sorted, 95)
	}
	if a.lastRun != nil {
		last := *a.lastRun
		stats.LastRun = &last
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []TrackCount {
	result := make([]TrackCount, 0, len(counts))
	for track, count := range counts {
		result = append(result, TrackCount{Track: track, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Track < result[j].Track
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
