// Package store persists sources, editions, signals and ingestion runs in
// PostgreSQL. It implements the runner's Store and the read side used by
// the HTTP API and CLI.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/postgres"
)

//go:embed schema.sql
var schema string

// Store is the PostgreSQL repository.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	s.logger.Info("schema applied")
	return nil
}

func notFound(err error, format string, args ...any) error {
	if err == sql.ErrNoRows {
		return apperrors.Newf(apperrors.ErrNotFound, 404, format, args...)
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
