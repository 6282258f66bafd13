// Package ingestion runs the daily pipeline: fetch every enabled source,
// dedupe, classify, score, and replace the edition for the target date.
// It also defines the run request/result types and the Kafka event schemas
// emitted after each run.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

// Event types carried in the Kafka type header.
const (
	EventRunCompleted    = "run.completed"
	EventSignalPublished = "signal.published"
)

// DefaultTriggeredBy is recorded when a request names no trigger.
const DefaultTriggeredBy = "manual"

// Request starts a run. Zero values mean: today's UTC date, "manual", and
// the configured item budget.
type Request struct {
	Date        string `json:"date,omitempty"`
	TriggeredBy string `json:"triggeredBy,omitempty"`
	MaxItems    int    `json:"maxItems,omitempty"`
}

// Result is the outcome of a run. A Runner always returns one, even when the
// run failed.
type Result struct {
	RunID                string           `json:"runId"`
	EditionDate          string           `json:"editionDate"`
	Status               signal.RunStatus `json:"status"`
	ItemsFetched         int              `json:"itemsFetched"`
	ItemsCreated         int              `json:"itemsCreated"`
	SourceErrors         int              `json:"sourceErrors"`
	ClassificationErrors int              `json:"classificationErrors"`
	LogPath              string           `json:"logPath"`
	ErrorMessage         string           `json:"errorMessage,omitempty"`
}

// RunCompletedEvent is published once per finalized run.
type RunCompletedEvent struct {
	RunID                string           `json:"run_id"`
	EditionDate          string           `json:"edition_date"`
	EditionID            string           `json:"edition_id,omitempty"`
	Status               signal.RunStatus `json:"status"`
	TriggeredBy          string           `json:"triggered_by"`
	ItemsFetched         int              `json:"items_fetched"`
	ItemsCreated         int              `json:"items_created"`
	SourceErrors         int              `json:"source_errors"`
	ClassificationErrors int              `json:"classification_errors"`
	HotCount             int              `json:"hot_count"`
	NotableCount         int              `json:"notable_count"`
	QuietCount           int              `json:"quiet_count"`
	TopTracks            []string         `json:"top_tracks,omitempty"`
	StartedAt            time.Time        `json:"started_at"`
	FinishedAt           time.Time        `json:"finished_at"`
	DurationMs           int64            `json:"duration_ms"`
}

// SignalPublishedEvent announces a headliner of a new edition.
type SignalPublishedEvent struct {
	EditionDate string      `json:"edition_date"`
	Rank        int         `json:"rank"`
	Title       string      `json:"title"`
	Summary     string      `json:"summary"`
	SourceURL   string      `json:"source_url"`
	TrackKey    string      `json:"track_key"`
	Heat        signal.Heat `json:"heat"`
	Tier        int         `json:"tier"`
	PublishedAt time.Time   `json:"published_at"`
}
