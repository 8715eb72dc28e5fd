package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/engine"
)

// PositionReader defines the position queries the API serves.
type PositionReader interface {
	ListOpen(ctx context.Context) ([]domain.Position, error)
	GetByID(ctx context.Context, id string) (domain.Position, error)
	History(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error)
}

// PositionOpener defines the operator entry-registration action.
type PositionOpener interface {
	OpenFromEvaluation(ctx context.Context, evalID string, opts engine.OpenOptions) (domain.Position, error)
}

// PositionCloser defines the operator close action.
type PositionCloser interface {
	Close(ctx context.Context, id string, closedAt time.Time) error
}

// ScreenerReader defines the screening history queries the API serves.
type ScreenerReader interface {
	RecentEvaluations(ctx context.Context, limit int) ([]domain.EvalResult, error)
	RecentRanks(limit int) []domain.RankResult
}

// handleHealth responds with a simple JSON status.
// GET /api/health
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type positionHandler struct {
	positions PositionReader
	opener    PositionOpener
	closer    PositionCloser
	logger    *slog.Logger
}

func newPositionHandler(positions PositionReader, opener PositionOpener, closer PositionCloser, logger *slog.Logger) *positionHandler {
	return &positionHandler{
		positions: positions,
		opener:    opener,
		closer:    closer,
		logger:    logger,
	}
}

type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// listOpen returns all open positions.
// GET /api/positions
func (h *positionHandler) listOpen(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.ListOpen(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list open positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// listHistory returns positions regardless of state, newest first.
// GET /api/positions/history?limit=&offset=
func (h *positionHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.History(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list position history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list position history")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// get returns one position by ID.
// GET /api/positions/{id}
func (h *positionHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	pos, err := h.positions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get position failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

type openPositionRequest struct {
	EvaluationID     string     `json:"evaluation_id"`
	Leverage         float64    `json:"leverage"`
	NextFundingAt    *time.Time `json:"next_funding_at"`
	TakerFeeShort    *float64   `json:"taker_fee_short"`
	TakerFeeLong     *float64   `json:"taker_fee_long"`
	SlippageBpsShort *float64   `json:"slippage_bps_short"`
	SlippageBpsLong  *float64   `json:"slippage_bps_long"`
}

// open registers an entry: it freezes a recorded evaluation into an open
// position, with optional leverage and per-leg fill overrides.
// POST /api/positions
func (h *positionHandler) open(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EvaluationID == "" {
		writeError(w, http.StatusBadRequest, "evaluation_id is required")
		return
	}

	opts := engine.OpenOptions{
		EntryAt:  time.Now().UTC(),
		Leverage: req.Leverage,
	}
	if req.NextFundingAt != nil {
		opts.NextFundingAt = *req.NextFundingAt
	}
	if req.TakerFeeShort != nil || req.TakerFeeLong != nil ||
		req.SlippageBpsShort != nil || req.SlippageBpsLong != nil {
		opts.Overrides = &engine.CostOverrides{
			TakerFeeShort:    req.TakerFeeShort,
			TakerFeeLong:     req.TakerFeeLong,
			SlippageBpsShort: req.SlippageBpsShort,
			SlippageBpsLong:  req.SlippageBpsLong,
		}
	}

	pos, err := h.opener.OpenFromEvaluation(r.Context(), req.EvaluationID, opts)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "evaluation not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "open position failed",
			slog.String("evaluation_id", req.EvaluationID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to open position")
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

// close marks an open position closed.
// POST /api/positions/{id}/close
func (h *positionHandler) close(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.closer.Close(r.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "open position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "close position failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to close position")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "closed", "id": id})
}

type screenerHandler struct {
	screener ScreenerReader
	logger   *slog.Logger
}

func newScreenerHandler(screener ScreenerReader, logger *slog.Logger) *screenerHandler {
	return &screenerHandler{
		screener: screener,
		logger:   logger,
	}
}

type listEvaluationsResponse struct {
	Evaluations []domain.EvalResult `json:"evaluations"`
}

type listRanksResponse struct {
	Ranks []domain.RankResult `json:"ranks"`
}

// recentEvaluations returns the latest screening records.
// GET /api/evaluations/recent?limit=
func (h *screenerHandler) recentEvaluations(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	evals, err := h.screener.RecentEvaluations(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent evaluations failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list evaluations")
		return
	}

	if evals == nil {
		evals = []domain.EvalResult{}
	}
	writeJSON(w, http.StatusOK, listEvaluationsResponse{Evaluations: evals})
}

// recentRanks returns the latest liquidity ranks.
// GET /api/ranks/recent?limit=
func (h *screenerHandler) recentRanks(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	ranks := h.screener.RecentRanks(opts.Limit)
	if ranks == nil {
		ranks = []domain.RankResult{}
	}
	writeJSON(w, http.StatusOK, listRanksResponse{Ranks: ranks})
}

// writeJSON marshals v as JSON and writes it with the given status code. If
// marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts extracts standard pagination parameters from the query
// string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}
