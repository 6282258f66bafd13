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

const runColumns = `id, status, started_at, finished_at, items_fetched, items_created,
COALESCE(error_message, ''), COALESCE(log_path, ''), triggered_by, edition_id`

// CreateRun inserts a RUNNING run and returns its id.
func (s *Store) CreateRun(ctx context.Context, triggeredBy string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, status, started_at, triggered_by) VALUES ($1, $2, $3, $4)`,
		id, string(signal.RunRunning), startedAt, triggeredBy,
	)
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return id, nil
}

// FinalizeRun records the terminal state of a run. Only RUNNING rows are
// updated, so a run is finalized at most once.
func (s *Store) FinalizeRun(ctx context.Context, runID string, f signal.RunFinal) error {
	if !f.Status.Terminal() {
		return apperrors.Newf(apperrors.ErrInvalidInput, 400,
			"run %s cannot be finalized as %s", runID, f.Status)
	}
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE ingestion_runs
SET status = $2, finished_at = $3, items_fetched = $4, items_created = $5,
    error_message = $6, log_text = $7, log_path = $8, edition_id = $9
WHERE id = $1 AND status = 'RUNNING'`,
		runID, string(f.Status), f.FinishedAt, f.ItemsFetched, f.ItemsCreated,
		nullString(f.ErrorMessage), f.LogText, nullString(f.LogPath), nullString(f.EditionID),
	)
	if err != nil {
		return fmt.Errorf("finalizing run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finalizing run %s: run is not RUNNING", runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]signal.Run, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+runColumns+` FROM ingestion_runs ORDER BY started_at DESC LIMIT $1`,
		clampLimit(limit, 25, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []signal.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunLog returns a run including its log text.
func (s *Store) RunLog(ctx context.Context, runID string) (signal.Run, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return signal.Run{}, notFound(sql.ErrNoRows, "run %s not found", runID)
	}
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+runColumns+`, COALESCE(log_text, '') FROM ingestion_runs WHERE id = $1`, runID)
	run, err := scanRunWithLog(row)
	if err != nil {
		return signal.Run{}, notFound(err, "run %s not found", runID)
	}
	return run, nil
}

// LatestRunLog returns the most recently started run including its log.
func (s *Store) LatestRunLog(ctx context.Context) (signal.Run, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+runColumns+`, COALESCE(log_text, '') FROM ingestion_runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRunWithLog(row)
	if err != nil {
		return signal.Run{}, notFound(err, "no runs recorded")
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (signal.Run, error) {
	var (
		run       signal.Run
		status    string
		finished  sql.NullTime
		editionID sql.NullString
	)
	dest := append([]any{
		&run.ID, &status, &run.StartedAt, &finished, &run.ItemsFetched, &run.ItemsCreated,
		&run.ErrorMessage, &run.LogPath, &run.TriggeredBy, &editionID,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return signal.Run{}, err
	}
	run.Status = signal.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if editionID.Valid {
		id := editionID.String
		run.EditionID = &id
	}
	return run, nil
}

func scanRunWithLog(row scanner) (signal.Run, error) {
	var text string
	run, err := scanRun(row, &text)
	if err != nil {
		return signal.Run{}, err
	}
	run.LogText = text
	return run, nil
}
