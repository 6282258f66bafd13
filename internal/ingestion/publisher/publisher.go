// Package publisher emits ingestion run events to Kafka: one RunCompleted
// event per finalized run on the run topic, and one SignalPublished event
// per headliner on the signal topic.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/kafka"
)

// Producer is the subset of kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Publisher fans run outcomes out to Kafka.
type Publisher struct {
	runs    Producer
	signals Producer
	logger  *slog.Logger
}

// New creates a Publisher. signals may be nil to skip headliner events.
func New(runs, signals Producer) *Publisher {
	return &Publisher{
		runs:    runs,
		signals: signals,
		logger:  slog.Default().With("component", "publisher"),
	}
}

// PublishRun publishes the run event and, for runs that produced an
// edition, its headliners. Both writes are attempted; errors are joined.
func (p *Publisher) PublishRun(ctx context.Context, event ingestion.RunCompletedEvent, drafts []signal.Draft) error {
	var errs []error
	err := p.runs.Publish(ctx, kafka.Event{
		Key:   event.EditionDate,
		Type:  ingestion.EventRunCompleted,
		Value: event,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("publishing run event: %w", err))
	}

	if p.signals != nil && event.EditionID != "" {
		headliners := HeadlinerEvents(event.EditionDate, drafts)
		if err := p.signals.PublishBatch(ctx, headliners); err != nil {
			errs = append(errs, fmt.Errorf("publishing headliners: %w", err))
		} else if len(headliners) > 0 {
			p.logger.Info("headliners published", "date", event.EditionDate, "count", len(headliners))
		}
	}
	return errors.Join(errs...)
}

// HeadlinerEvents builds one event per ranked draft, keyed by source URL.
func HeadlinerEvents(date string, drafts []signal.Draft) []kafka.Event {
	var events []kafka.Event
	for _, d := range drafts {
		if d.Rank == nil {
			continue
		}
		events = append(events, kafka.Event{
			Key:  d.SourceURL,
			Type: ingestion.EventSignalPublished,
			Value: ingestion.SignalPublishedEvent{
				EditionDate: date,
				Rank:        *d.Rank,
				Title:       d.Title,
				Summary:     d.Summary,
				SourceURL:   d.SourceURL,
				TrackKey:    d.TrackKey,
				Heat:        d.Heat,
				Tier:        d.Tier,
				PublishedAt: d.OccurredAt,
			},
		})
	}
	return events
}
