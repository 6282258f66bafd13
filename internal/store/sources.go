package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	apperrors "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/errors"
)

const sourceColumns = `id, name, type, identifier, provider_label, tier, enabled, last_fetched_at, COALESCE(last_error, '')`

// ListEnabledSources returns enabled sources ordered by tier, then name.
func (s *Store) ListEnabledSources(ctx context.Context) ([]signal.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE enabled ORDER BY tier ASC, name ASC`)
}

// ListSources returns every source ordered by tier, then name.
func (s *Store) ListSources(ctx context.Context) ([]signal.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY tier ASC, name ASC`)
}

func (s *Store) SourceByID(ctx context.Context, id string) (signal.Source, error) {
	if _, err := uuid.Parse(id); err != nil {
		return signal.Source{}, notFound(sql.ErrNoRows, "source %s not found", id)
	}
	row := s.db.DB.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	src, err := scanSource(row)
	if err != nil {
		return signal.Source{}, notFound(err, "source %s not found", id)
	}
	return src, nil
}

// UpsertSource creates a source, or updates the one with the same type and
// identifier, and returns its id.
func (s *Store) UpsertSource(ctx context.Context, src signal.Source) (string, error) {
	if !signal.ValidSourceType(src.Type) {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, 400, "unsupported source type %q", src.Type)
	}
	if src.Tier < 1 || src.Tier > 3 {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, 400, "tier must be between 1 and 3")
	}
	var id string
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO sources (id, name, type, identifier, provider_label, tier, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (type, identifier) DO UPDATE SET
  name = EXCLUDED.name,
  provider_label = EXCLUDED.provider_label,
  tier = EXCLUDED.tier,
  enabled = EXCLUDED.enabled
RETURNING id`,
		uuid.NewString(), src.Name, string(src.Type), src.Identifier, src.ProviderLabel, src.Tier, src.Enabled,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting source: %w", err)
	}
	return id, nil
}

// MarkSourceFetched records a successful fetch and clears the last error.
func (s *Store) MarkSourceFetched(ctx context.Context, sourceID string, at time.Time) error {
	_, err := s.db.DB.ExecContext(ctx,
		`UPDATE sources SET last_fetched_at = $2, last_error = NULL WHERE id = $1`, sourceID, at)
	if err != nil {
		return fmt.Errorf("marking source %s fetched: %w", sourceID, err)
	}
	return nil
}

// MarkSourceFailed records the last fetch error, clipped to 500 characters.
func (s *Store) MarkSourceFailed(ctx context.Context, sourceID, message string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`UPDATE sources SET last_error = $2 WHERE id = $1`, sourceID, signal.Clip(message, signal.MaxLastError))
	if err != nil {
		return fmt.Errorf("marking source %s failed: %w", sourceID, err)
	}
	return nil
}

func (s *Store) querySources(ctx context.Context, query string) ([]signal.Source, error) {
	rows, err := s.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var out []signal.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func scanSource(row scanner) (signal.Source, error) {
	var (
		src     signal.Source
		typ     string
		fetched sql.NullTime
	)
	if err := row.Scan(&src.ID, &src.Name, &typ, &src.Identifier, &src.ProviderLabel, &src.Tier, &src.Enabled, &fetched, &src.LastError); err != nil {
		return signal.Source{}, err
	}
	src.Type = signal.SourceType(typ)
	if fetched.Valid {
		t := fetched.Time
		src.LastFetchedAt = &t
	}
	return src, nil
}
