package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

const upsertEdition = `INSERT INTO editions (id, edition_date, generated_at, total_count, hot_count, notable_count, quiet_count, morning_note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (edition_date) DO UPDATE SET
  generated_at = EXCLUDED.generated_at,
  total_count = EXCLUDED.total_count,
  hot_count = EXCLUDED.hot_count,
  notable_count = EXCLUDED.notable_count,
  quiet_count = EXCLUDED.quiet_count,
  morning_note = EXCLUDED.morning_note
RETURNING id`

const insertSignal = `INSERT INTO signals (id, edition_id, position, title, summary, rationale, provider_key, provider_label,
  track_key, track_label, heat, stream_key, stream_label, rank, source_url, source_domain, citations, confidence, tier, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

const editionColumns = `id, edition_date, generated_at, total_count, hot_count, notable_count, quiet_count`

// ReplaceEdition upserts the edition for snap.Date and replaces its signals
// in one transaction. It returns the edition id, which is stable across
// reruns of the same date.
func (s *Store) ReplaceEdition(ctx context.Context, snap signal.EditionSnapshot) (string, error) {
	var editionID string
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, upsertEdition,
			uuid.NewString(), snap.Date, snap.GeneratedAt, snap.TotalCount,
			snap.HotCount, snap.NotableCount, snap.QuietCount, snap.MorningNote,
		).Scan(&editionID)
		if err != nil {
			return fmt.Errorf("upserting edition: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM signals WHERE edition_id = $1`, editionID); err != nil {
			return fmt.Errorf("clearing signals: %w", err)
		}
		if len(snap.Drafts) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, insertSignal)
		if err != nil {
			return fmt.Errorf("preparing signal insert: %w", err)
		}
		defer stmt.Close()
		for i, d := range snap.Drafts {
			var rank sql.NullInt64
			if d.Rank != nil {
				rank = sql.NullInt64{Int64: int64(*d.Rank), Valid: true}
			}
			_, err := stmt.ExecContext(ctx,
				uuid.NewString(), editionID, i, d.Title, d.Summary, d.Rationale, d.ProviderKey, d.ProviderLabel,
				d.TrackKey, d.TrackLabel, string(d.Heat), string(d.StreamKey), d.StreamLabel, rank,
				d.SourceURL, d.SourceDomain, pq.Array(d.Citations), string(d.Confidence), d.Tier, d.OccurredAt,
			)
			if err != nil {
				return fmt.Errorf("inserting signal %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("edition replaced", "date", snap.Date, "edition_id", editionID, "signals", len(snap.Drafts))
	return editionID, nil
}

// EditionByDate returns the edition for date with its signals, headliners
// first by rank.
func (s *Store) EditionByDate(ctx context.Context, date string) (*signal.Edition, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+editionColumns+`, morning_note FROM editions WHERE edition_date = $1`, date)
	return s.loadEdition(ctx, row, "edition "+date+" not found")
}

// LatestEdition returns the most recent edition with its signals.
func (s *Store) LatestEdition(ctx context.Context) (*signal.Edition, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+editionColumns+`, morning_note FROM editions ORDER BY edition_date DESC LIMIT 1`)
	return s.loadEdition(ctx, row, "no editions published")
}

func (s *Store) loadEdition(ctx context.Context, row *sql.Row, missing string) (*signal.Edition, error) {
	var e signal.Edition
	err := row.Scan(&e.ID, &e.Date, &e.GeneratedAt, &e.TotalCount, &e.HotCount, &e.NotableCount, &e.QuietCount, &e.MorningNote)
	if err != nil {
		return nil, notFound(err, "%s", missing)
	}
	signals, err := s.editionSignals(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.Signals = signals
	return &e, nil
}

func (s *Store) editionSignals(ctx context.Context, editionID string) ([]signal.Signal, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, edition_id, title, summary, rationale, provider_key, provider_label, track_key, track_label,
  heat, stream_key, stream_label, rank, source_url, source_domain, citations, confidence, tier, occurred_at
FROM signals WHERE edition_id = $1
ORDER BY rank ASC NULLS LAST, position ASC`, editionID)
	if err != nil {
		return nil, fmt.Errorf("loading signals: %w", err)
	}
	defer rows.Close()

	var out []signal.Signal
	for rows.Next() {
		var (
			sg                       signal.Signal
			heat, stream, confidence string
			rank                     sql.NullInt64
			citations                pq.StringArray
		)
		err := rows.Scan(&sg.ID, &sg.EditionID, &sg.Title, &sg.Summary, &sg.Rationale, &sg.ProviderKey, &sg.ProviderLabel,
			&sg.TrackKey, &sg.TrackLabel, &heat, &stream, &sg.StreamLabel, &rank, &sg.SourceURL, &sg.SourceDomain,
			&citations, &confidence, &sg.Tier, &sg.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scanning signal: %w", err)
		}
		sg.Heat = signal.Heat(heat)
		sg.StreamKey = signal.StreamKey(stream)
		sg.Confidence = signal.Confidence(confidence)
		sg.Citations = []string(citations)
		if rank.Valid {
			r := int(rank.Int64)
			sg.Rank = &r
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// ListEditions returns edition metadata, newest first.
func (s *Store) ListEditions(ctx context.Context, limit int) ([]signal.EditionSummary, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+editionColumns+` FROM editions ORDER BY edition_date DESC LIMIT $1`,
		clampLimit(limit, 30, 365),
	)
	if err != nil {
		return nil, fmt.Errorf("listing editions: %w", err)
	}
	defer rows.Close()

	var out []signal.EditionSummary
	for rows.Next() {
		var e signal.EditionSummary
		if err := rows.Scan(&e.ID, &e.Date, &e.GeneratedAt, &e.TotalCount, &e.HotCount, &e.NotableCount, &e.QuietCount); err != nil {
			return nil, fmt.Errorf("scanning edition: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
