package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/backtest"
	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/pkg/logger"
)

// BacktestRunner runs single backtests and parameter sweeps; *backtest.Engine satisfies it
type BacktestRunner interface {
	Run(ctx context.Context, cfg backtest.Config) (*backtest.Result, error)
	Sweep(ctx context.Context, base backtest.Config, variants []backtest.Variant) ([]backtest.SweepResult, error)
}

// RunLister reads persisted runs; *audit.Repository satisfies it
type RunLister interface {
	GetRun(ctx context.Context, runID string) (*audit.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]audit.RunRecord, error)
}

// BacktestHandler handles backtest endpoints
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	engine   BacktestRunner
	runs     RunLister
	defaults backtest.Config
	location *time.Location
	logger   *logger.Logger
}

// NewBacktestHandler creates a new backtest handler; runs may be nil
func NewBacktestHandler(engine BacktestRunner, runs RunLister, defaults backtest.Config, loc *time.Location, log *logger.Logger) *BacktestHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BacktestHandler{
		engine:   engine,
		runs:     runs,
		defaults: defaults,
		location: loc,
		logger:   log,
	}
}

// BacktestRequest overrides the server's default strategy config; omitted fields keep the default
type BacktestRequest struct {
	Symbols          []string `json:"symbols"`
	StartDate        string   `json:"start_date"` // YYYY-MM-DD, inclusive
	EndDate          string   `json:"end_date"`   // YYYY-MM-DD, exclusive
	InitialCapital   *float64 `json:"initial_capital,omitempty"`
	PositionFraction *float64 `json:"position_fraction,omitempty"`
	BuyThreshold     *int     `json:"buy_threshold,omitempty"`
	SellThreshold    *int     `json:"sell_threshold,omitempty"`
	WeakeningPenalty *bool    `json:"weakening_penalty,omitempty"`
}

// SweepRequest runs variants over one base request
type SweepRequest struct {
	BacktestRequest
	Variants []backtest.Variant `json:"variants"`
}

// config merges the request onto defaults and validates the result
func (h *BacktestHandler) config(req BacktestRequest) (backtest.Config, error) {
	cfg := h.defaults
	cfg.Symbols = append([]string(nil), h.defaults.Symbols...)

	if len(req.Symbols) > 0 {
		cfg.Symbols = req.Symbols
	}
	for _, symbol := range cfg.Symbols {
		if err := contracts.ValidateSymbol(symbol); err != nil {
			return cfg, err
		}
	}

	var err error
	if req.StartDate != "" {
		if cfg.StartDate, err = time.ParseInLocation("2006-01-02", req.StartDate, h.location); err != nil {
			return cfg, errors.New("invalid 'start_date' format (expected YYYY-MM-DD)")
		}
	}
	if req.EndDate != "" {
		if cfg.EndDate, err = time.ParseInLocation("2006-01-02", req.EndDate, h.location); err != nil {
			return cfg, errors.New("invalid 'end_date' format (expected YYYY-MM-DD)")
		}
	}

	if req.InitialCapital != nil {
		cfg.InitialCapital = *req.InitialCapital
	}
	if req.PositionFraction != nil {
		if *req.PositionFraction <= 0 || *req.PositionFraction > 1 {
			return cfg, errors.New("position_fraction must be in (0, 1]")
		}
		cfg.PositionFraction = *req.PositionFraction
	}
	if req.BuyThreshold != nil {
		cfg.Thresholds.Buy = *req.BuyThreshold
	}
	if req.SellThreshold != nil {
		cfg.Thresholds.Sell = *req.SellThreshold
	}
	if req.WeakeningPenalty != nil {
		cfg.WeakeningPenalty = *req.WeakeningPenalty
	}

	return cfg, cfg.Validate()
}

// RunBacktest runs one backtest
// POST /api/backtest
func (h *BacktestHandler) RunBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.config(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.Run(r.Context(), cfg)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// RunSweep runs parameter variants over shared bars
// POST /api/backtest/sweep
func (h *BacktestHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Variants) == 0 {
		respondError(w, http.StatusBadRequest, "At least one variant is required")
		return
	}

	cfg, err := h.config(req.BacktestRequest)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, v := range req.Variants {
		if err := v.Apply(cfg).Validate(); err != nil {
			respondError(w, http.StatusBadRequest, "variant "+strconv.Quote(v.Name)+": "+err.Error())
			return
		}
	}

	results, err := h.engine.Sweep(r.Context(), cfg, req.Variants)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// ListRuns returns recent persisted runs
// GET /api/backtest/runs?limit=N
func (h *BacktestHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run storage is not configured")
		return
	}

	limit := 20
	if ls := r.URL.Query().Get("limit"); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit'")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	respondJSON(w, http.StatusOK, runs)
}

// GetRun returns one persisted run with its trades
// GET /api/backtest/runs/{id}
func (h *BacktestHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run storage is not configured")
		return
	}

	run, err := h.runs.GetRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, audit.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func (h *BacktestHandler) respondRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backtest.ErrNoData):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, backtest.ErrInvalidCapital):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, http.StatusInternalServerError, "Backtest failed")
	}
}
