package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	apperrors "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/logger"
)

// APITriggeredBy labels runs started over HTTP without an explicit name.
const APITriggeredBy = "api"

const maxBodyBytes = 1 << 16

type Trigger interface {
	Trigger(ctx context.Context, req ingestion.Request) (ingestion.Result, error)
}

type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]signal.Run, error)
	RunLog(ctx context.Context, runID string) (signal.Run, error)
	LatestRunLog(ctx context.Context) (signal.Run, error)
	ListSources(ctx context.Context) ([]signal.Source, error)
}

type Handler struct {
	trigger Trigger
	reader  RunReader
	logger  *slog.Logger
}

func New(trigger Trigger, reader RunReader) *Handler {
	return &Handler{
		trigger: trigger,
		reader:  reader,
		logger:  slog.Default().With("component", "ingestion-handler"),
	}
}

// TriggerRun runs an ingestion synchronously and returns its result. The
// response is 200 for every terminal status; callers inspect result.status.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.Request
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = APITriggeredBy
	}
	if err := validator.ValidateRunRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.trigger.Trigger(ctx, req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Warn("run trigger rejected", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, message(err))
		return
	}
	log.Info("run triggered",
		"run_id", result.RunID,
		"date", result.EditionDate,
		"status", result.Status,
		"items_created", result.ItemsCreated,
	)
	h.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	runs, err := h.reader.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "listing runs failed", err)
		return
	}
	if runs == nil {
		runs = []signal.Run{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) RunLog(w http.ResponseWriter, r *http.Request) {
	run, err := h.reader.RunLog(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "loading run log failed", err)
		return
	}
	h.writeLog(w, run)
}

func (h *Handler) LatestRunLog(w http.ResponseWriter, r *http.Request) {
	run, err := h.reader.LatestRunLog(r.Context())
	if err != nil {
		h.fail(w, r, "loading run log failed", err)
		return
	}
	h.writeLog(w, run)
}

func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.reader.ListSources(r.Context())
	if err != nil {
		h.fail(w, r, "listing sources failed", err)
		return
	}
	if sources == nil {
		sources = []signal.Source{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (h *Handler) writeLog(w http.ResponseWriter, run signal.Run) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=signal-digest-run-%s.log", run.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, run.LogText); err != nil {
		h.logger.Error("failed to write log response", "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status == http.StatusNotFound {
		h.writeError(w, status, message(err))
		return
	}
	logger.FromContext(r.Context()).Error(msg, "error", err, "status_code", status)
	h.writeError(w, status, msg)
}

func message(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
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
