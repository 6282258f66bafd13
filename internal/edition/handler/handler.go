package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/edition/cache"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	apperrors "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/logger"
)

const dateLayout = "2006-01-02"

// Reader loads published editions.
type Reader interface {
	EditionByDate(ctx context.Context, date string) (*signal.Edition, error)
	LatestEdition(ctx context.Context) (*signal.Edition, error)
	ListEditions(ctx context.Context, limit int) ([]signal.EditionSummary, error)
}

type Handler struct {
	reader       Reader
	cache        *cache.EditionCache
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// New returns an edition handler. editionCache may be nil.
func New(reader Reader, editionCache *cache.EditionCache) *Handler {
	return &Handler{
		reader:       reader,
		cache:        editionCache,
		defaultLimit: 30,
		maxLimit:     365,
		logger:       slog.Default().With("component", "edition-handler"),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxLimit {
			parsed = h.maxLimit
		}
		limit = parsed
	}

	load := func() ([]signal.EditionSummary, error) { return h.reader.ListEditions(ctx, limit) }
	var (
		editions []signal.EditionSummary
		err      error
	)
	if h.cache != nil {
		editions, _, err = h.cache.List(ctx, limit, load)
	} else {
		editions, err = load()
	}
	if err != nil {
		h.fail(w, r, "listing editions failed", err)
		return
	}
	if editions == nil {
		editions = []signal.EditionSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"editions": editions})
}

func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	load := func() (*signal.Edition, error) { return h.reader.LatestEdition(ctx) }
	var (
		edition  *signal.Edition
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		edition, cacheHit, err = h.cache.Latest(ctx, load)
	} else {
		edition, err = load()
	}
	if err != nil {
		h.fail(w, r, "loading latest edition failed", err)
		return
	}
	logger.FromContext(ctx).Debug("latest edition served", "date", edition.Date, "cache_hit", cacheHit)
	h.writeJSON(w, http.StatusOK, edition)
}

func (h *Handler) ByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := r.PathValue("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	load := func() (*signal.Edition, error) { return h.reader.EditionByDate(ctx, date) }
	var (
		edition *signal.Edition
		err     error
	)
	if h.cache != nil {
		edition, _, err = h.cache.Edition(ctx, date, load)
	} else {
		edition, err = load()
	}
	if err != nil {
		h.fail(w, r, "loading edition failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, edition)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	var appErr *apperrors.AppError
	if status == http.StatusNotFound && errors.As(err, &appErr) {
		h.writeError(w, status, appErr.Message)
		return
	}
	logger.FromContext(r.Context()).Error(msg, "error", err, "status_code", status)
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
