package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/element"
	"github.com/wonny/wuxing-quant/internal/profile"
	"github.com/wonny/wuxing-quant/pkg/logger"
)

// Snapshotter produces a stamped signal; *s2_signals.DateSignaler satisfies it
type Snapshotter interface {
	Snapshot(date time.Time, symbol string) contracts.DailySignal
}

// CycleHandler serves pillars, signals and asset profiles
// ⭐ SSOT: 간지/시그널/프로필 API 핸들러는 이 구조체에서만
type CycleHandler struct {
	calc     *cycle.Calculator
	signaler Snapshotter
	repo     contracts.SignalRepository
	prices   contracts.PriceSource
	symbols  []string
	location *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewCycleHandler creates a new cycle handler; repo may be nil
func NewCycleHandler(
	calc *cycle.Calculator,
	signaler Snapshotter,
	repo contracts.SignalRepository,
	symbols []string,
	loc *time.Location,
	log *logger.Logger,
) *CycleHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CycleHandler{
		calc:     calc,
		signaler: signaler,
		repo:     repo,
		symbols:  symbols,
		location: loc,
		now:      time.Now,
		logger:   log,
	}
}

// WithPrices enables observed-vs-expected month statistics on profile endpoints
func (h *CycleHandler) WithPrices(source contracts.PriceSource) *CycleHandler {
	h.prices = source
	return h
}

// PillarsResponse describes the pillars of one timestamp
type PillarsResponse struct {
	Time     time.Time       `json:"time"`
	Pillars  cycle.PillarSet `json:"pillars"`
	Text     string          `json:"text"`
	Strength element.Vector  `json:"strength"`
	Dominant element.Element `json:"dominant"`
	Weakest  element.Element `json:"weakest"`
}

// GetPillars returns the pillar set for a date (midnight) or date+hour
// GET /api/pillars?date=YYYY-MM-DD&hour=H
func (h *CycleHandler) GetPillars(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), h.location, h.today())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	if hs := r.URL.Query().Get("hour"); hs != "" {
		hour, err := strconv.Atoi(hs)
		if err != nil || hour < 0 || hour > 23 {
			respondError(w, http.StatusBadRequest, "Invalid 'hour' (expected 0-23)")
			return
		}
		date = date.Add(time.Duration(hour) * time.Hour)
	}

	ps := h.calc.Compute(date)
	strength := cycle.StrengthVector(ps)
	respondJSON(w, http.StatusOK, PillarsResponse{
		Time:     date,
		Pillars:  ps,
		Text:     ps.String(),
		Strength: strength,
		Dominant: strength.Dominant(),
		Weakest:  strength.Weakest(),
	})
}

// GetSignals computes signals for a date; defaults to today and the configured symbols
// GET /api/signal?date=YYYY-MM-DD&symbols=A,B
func (h *CycleHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), h.location, h.today())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	symbols := splitList(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		symbols = h.symbols
	}
	if len(symbols) == 0 {
		respondError(w, http.StatusBadRequest, "No symbols requested")
		return
	}

	signals := make([]contracts.DailySignal, 0, len(symbols))
	for _, symbol := range symbols {
		if err := contracts.ValidateSymbol(symbol); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		signals = append(signals, h.signaler.Snapshot(date, symbol))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    contracts.DateKey(date),
		"signals": signals,
	})
}

// GetStoredSignals returns the snapshots the scheduler stored for a date
// GET /api/signal/history?date=YYYY-MM-DD
func (h *CycleHandler) GetStoredSignals(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, http.StatusServiceUnavailable, "Signal storage is not configured")
		return
	}

	date, err := parseDate(r.URL.Query().Get("date"), h.location, h.today())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	signals, err := h.repo.GetByDate(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get stored signals")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve signals")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    contracts.DateKey(date),
		"signals": signals,
	})
}

// ListProfiles returns the built-in assets
// GET /api/profiles
func (h *CycleHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, profile.Assets())
}

// GetProfile returns an asset's profile and monthly outlook.
// With ?symbol= (or ?history=true for the asset's default ticker) the observed
// monthly statistics and their correlation with the outlook are included.
// GET /api/profile/{asset}
func (h *CycleHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	asset, err := profile.Lookup(mux.Vars(r)["asset"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	p := profile.Analyze(h.calc, asset)
	resp := map[string]interface{}{
		"profile": p,
		"outlook": profile.Forecast(p),
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" && r.URL.Query().Get("history") == "true" {
		symbol = asset.Symbol
	}
	if symbol != "" {
		season, status, err := h.seasonality(r.Context(), symbol)
		if err != nil {
			respondError(w, status, err.Error())
			return
		}
		resp["symbol"] = symbol
		resp["seasonality"] = season
		resp["correlation"] = profile.Correlate(p, season)
	}

	respondJSON(w, http.StatusOK, resp)
}

// CompareProfiles correlates several assets with their default tickers and
// reports the month and element patterns they share
// GET /api/profiles/compare?assets=sse,gold,btc
func (h *CycleHandler) CompareProfiles(w http.ResponseWriter, r *http.Request) {
	keys := splitList(r.URL.Query().Get("assets"))
	if len(keys) == 0 {
		for _, a := range profile.Assets() {
			keys = append(keys, a.Key)
		}
	}

	correlations := make([]profile.Correlation, 0, len(keys))
	for _, key := range keys {
		asset, err := profile.Lookup(key)
		if err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		season, status, err := h.seasonality(r.Context(), asset.Symbol)
		if err != nil {
			respondError(w, status, err.Error())
			return
		}
		correlations = append(correlations, profile.Correlate(profile.Analyze(h.calc, asset), season))
	}

	respondJSON(w, http.StatusOK, profile.Compare(correlations))
}

// seasonality loads the full history of symbol; the status is the HTTP code for err
func (h *CycleHandler) seasonality(ctx context.Context, symbol string) (audit.Seasonality, int, error) {
	if h.prices == nil {
		return audit.Seasonality{}, http.StatusServiceUnavailable, errors.New("Price data is not configured")
	}
	if err := contracts.ValidateSymbol(symbol); err != nil {
		return audit.Seasonality{}, http.StatusBadRequest, err
	}

	bars, err := h.prices.Bars(ctx, symbol, time.Time{}, time.Time{})
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to load bars for profile")
		return audit.Seasonality{}, http.StatusUnprocessableEntity, fmt.Errorf("no price history for %s", symbol)
	}
	return audit.MonthlySeasonality(bars), http.StatusOK, nil
}

func (h *CycleHandler) today() time.Time {
	y, m, d := h.now().In(h.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, h.location)
}
