package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/runstore"
	"github.com/wonny/evidence/internal/scheduler/jobs"
	"github.com/wonny/evidence/pkg/logger"
)

// RunReader loads persisted scoring runs
type RunReader interface {
	Latest(ctx context.Context, universe string) (*contracts.ScoringResult, error)
	Get(ctx context.Context, runID string) (*contracts.ScoringResult, error)
	History(ctx context.Context, universe string, limit int) ([]runstore.RunSummary, error)
}

// RunTrigger starts scoring runs in the background
type RunTrigger interface {
	Trigger(opts jobs.RunOptions) (string, error)
	Running() bool
}

// RunHandler handles scoring run endpoints
// ⭐ SSOT: 채점 결과 API 핸들러는 이 구조체에서만
type RunHandler struct {
	runs    RunReader
	trigger RunTrigger
	logger  *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunReader, trigger RunTrigger, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runs:    runs,
		trigger: trigger,
		logger:  log,
	}
}

// GetLatest returns the latest run
// GET /api/runs/latest?universe=us_megacap
func (h *RunHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	result, err := h.runs.Latest(r.Context(), r.URL.Query().Get("universe"))
	if err != nil {
		h.storeError(w, err, "Failed to retrieve latest run")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetLatestSymbol returns one symbol's record from the latest run
// GET /api/runs/latest/symbols/{symbol}
func (h *RunHandler) GetLatestSymbol(w http.ResponseWriter, r *http.Request) {
	result, err := h.runs.Latest(r.Context(), r.URL.Query().Get("universe"))
	if err != nil {
		h.storeError(w, err, "Failed to retrieve latest run")
		return
	}

	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	score, ok := result.Get(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "Symbol not in latest run")
		return
	}
	respondJSON(w, http.StatusOK, score)
}

// GetRun returns one run by id
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.runs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err, "Failed to retrieve run")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListRuns returns recent run summaries
// GET /api/runs?universe=us_megacap&limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be an integer in [1, 500]")
			return
		}
		limit = n
	}

	history, err := h.runs.History(r.Context(), q.Get("universe"), limit)
	if err != nil {
		h.storeError(w, err, "Failed to retrieve run history")
		return
	}
	if history == nil {
		history = []runstore.RunSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":    history,
		"running": h.trigger != nil && h.trigger.Running(),
	})
}

// TriggerResponse is returned when a run is accepted
type TriggerResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// TriggerRun starts a scoring run
// POST /api/runs  {"symbols": [...], "preset": "garp"}
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		respondError(w, http.StatusServiceUnavailable, "Scoring is not enabled on this server")
		return
	}

	var opts jobs.RunOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	runID, err := h.trigger.Trigger(opts)
	if err != nil {
		var cfgErr *contracts.ConfigurationError
		switch {
		case errors.Is(err, jobs.ErrRunInProgress):
			respondError(w, http.StatusConflict, err.Error())
		case errors.As(err, &cfgErr):
			respondError(w, http.StatusBadRequest, cfgErr.Error())
		default:
			h.logger.WithError(err).Error("Failed to trigger scoring run")
			respondError(w, http.StatusInternalServerError, "Failed to trigger scoring run")
		}
		return
	}

	h.logger.WithField("run_id", runID).Info("Scoring run triggered via API")
	respondJSON(w, http.StatusAccepted, TriggerResponse{RunID: runID, Status: "accepted"})
}

func (h *RunHandler) storeError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, runstore.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	h.logger.WithError(err).Error(message)
	respondError(w, http.StatusInternalServerError, message)
}
