package backtest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/s2_signals"
	"github.com/wonny/wuxing-quant/pkg/logger"
	"github.com/wonny/wuxing-quant/pkg/redis"
)

// Config holds backtest configuration
type Config struct {
	StrategyID       string                `json:"strategy_id"`
	Symbols          []string              `json:"symbols"`
	StartDate        time.Time             `json:"start_date"` // inclusive, zero = unbounded
	EndDate          time.Time             `json:"end_date"`   // exclusive, zero = unbounded
	InitialCapital   float64               `json:"initial_capital"`
	PositionFraction float64               `json:"position_fraction"`
	RiskFreeRate     float64               `json:"risk_free_rate"`
	ReferenceYear    int                   `json:"reference_year"`
	Thresholds       s2_signals.Thresholds `json:"thresholds"`
	WeakeningPenalty bool                  `json:"weakening_penalty"`
}

// DefaultConfig returns capital 100000, fraction 0.10, rf 0.03, thresholds ±3
func DefaultConfig() Config {
	return Config{
		StrategyID:       "wuxing_v1",
		InitialCapital:   100000,
		PositionFraction: DefaultPositionFraction,
		RiskFreeRate:     audit.DefaultRiskFreeRate,
		ReferenceYear:    cycle.DefaultReferenceYear,
		Thresholds:       s2_signals.DefaultThresholds(),
	}
}

// Hash returns the SHA-256 of the config's JSON form; used as cache key
func (c Config) Hash() string {
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Validate checks fields the simulator cannot default
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.InitialCapital <= 0 {
		return ErrInvalidCapital
	}
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && !c.StartDate.Before(c.EndDate) {
		return fmt.Errorf("start date %s must be before end date %s",
			contracts.DateKey(c.StartDate), contracts.DateKey(c.EndDate))
	}
	if c.PositionFraction < 0 || c.PositionFraction > 1 {
		return fmt.Errorf("position fraction must be in (0, 1], got %g", c.PositionFraction)
	}
	// zero thresholds fall back to the defaults in Simulate
	if c.Thresholds != (s2_signals.Thresholds{}) {
		if err := c.Thresholds.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Result holds backtest results
type Result struct {
	RunID      string               `json:"run_id"`
	ConfigHash string               `json:"config_hash"`
	Config     Config               `json:"config"`
	Duration   time.Duration        `json:"duration"`
	Metrics    contracts.Metrics    `json:"metrics"`
	Risk       contracts.RiskReport `json:"risk"`
	*RunResult
}

// RunStore persists finished runs
type RunStore interface {
	SaveRun(ctx context.Context, run audit.RunRecord) error
}

// Engine loads bars, runs the simulator and summarizes the outcome
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	source   contracts.PriceSource
	store    RunStore
	cache    *redis.Cache
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(source contracts.PriceSource, log *logger.Logger) *Engine {
	return &Engine{
		source:   source,
		cacheTTL: redis.TTLDaily,
		logger:   log,
	}
}

// WithStore persists every run through store
func (e *Engine) WithStore(store RunStore) *Engine {
	e.store = store
	return e
}

// WithCache caches results by config hash and input bars
func (e *Engine) WithCache(cache *redis.Cache, ttl time.Duration) *Engine {
	e.cache = cache
	if ttl > 0 {
		e.cacheTTL = ttl
	}
	return e
}

// Run executes one backtest.
// Cached results are keyed on the config and the loaded bars, so new bars miss the cache;
// a hit still gets a fresh run id and is stored like any other run.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	e.logger.WithFields(map[string]interface{}{
		"strategy_id":     cfg.StrategyID,
		"symbols":         cfg.Symbols,
		"start_date":      dateOrOpen(cfg.StartDate),
		"end_date":        dateOrOpen(cfg.EndDate),
		"initial_capital": cfg.InitialCapital,
	}).Info("Starting backtest")

	series, err := e.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hash := cfg.Hash()
	key := resultKey(hash, cfg.Symbols, series)

	result, hit := e.cached(ctx, key)
	if hit {
		result.RunID = uuid.NewString()
		result.Duration = time.Since(start)
	} else {
		if result, err = e.Simulate(cfg, series); err != nil {
			return nil, err
		}
	}
	result.ConfigHash = hash

	if e.store != nil {
		if err := e.store.SaveRun(ctx, result.Record()); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
	}

	if e.cache != nil && !hit {
		if err := e.cache.Set(ctx, redis.BacktestKey(key), result, e.cacheTTL); err != nil {
			e.logger.WithError(err).Warn("Failed to cache backtest result")
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":       result.RunID,
		"cached":       hit,
		"final_equity": result.FinalEquity,
		"total_return": result.Metrics[contracts.MetricTotalReturn],
		"trades":       len(result.Trades),
		"duration":     result.Duration.String(),
	}).Info("Backtest completed")

	return result, nil
}

// resultKey joins the config hash with a fingerprint of the bars each symbol contributed
func resultKey(configHash string, symbols []string, series map[string]contracts.PriceSeries) string {
	h := sha256.New()
	for _, symbol := range symbols {
		bars := series[symbol]
		fmt.Fprintf(h, "%s|%d", symbol, len(bars))
		if n := len(bars); n > 0 {
			fmt.Fprintf(h, "|%s|%s|%g", contracts.DateKey(bars[0].Date), contracts.DateKey(bars[n-1].Date), bars[n-1].Close)
		}
		h.Write([]byte{'\n'})
	}
	return configHash + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Load fetches and clips bars for every configured symbol.
// A failed symbol is logged and left out; context errors abort.
func (e *Engine) Load(ctx context.Context, cfg Config) (map[string]contracts.PriceSeries, error) {
	series := make(map[string]contracts.PriceSeries, len(cfg.Symbols))

	for _, symbol := range cfg.Symbols {
		bars, err := e.source.Bars(ctx, symbol, cfg.StartDate, cfg.EndDate)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			e.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			}).Warn("Failed to load bars, skipping symbol")
			continue
		}
		series[symbol] = bars.Sorted().Between(cfg.StartDate, cfg.EndDate)
	}

	return series, nil
}

// Simulate runs the simulator on already-loaded bars and summarizes the result.
// series is only read, so concurrent calls may share it.
func (e *Engine) Simulate(cfg Config, series map[string]contracts.PriceSeries) (*Result, error) {
	start := time.Now()

	if cfg.ReferenceYear == 0 {
		cfg.ReferenceYear = cycle.DefaultReferenceYear
	}
	if cfg.Thresholds == (s2_signals.Thresholds{}) {
		cfg.Thresholds = s2_signals.DefaultThresholds()
	}

	calc := &cycle.Calculator{ReferenceYear: cfg.ReferenceYear}
	gen := &s2_signals.Generator{Thresholds: cfg.Thresholds, WeakeningPenalty: cfg.WeakeningPenalty}
	sim := NewSimulator(s2_signals.NewDateSignaler(calc, gen), cfg.PositionFraction, e.logger)

	run, err := sim.Run(cfg.Symbols, series, cfg.InitialCapital)
	if err != nil {
		return nil, err
	}

	for _, symbol := range run.Skipped {
		e.logger.WithField("symbol", symbol).Warn("No usable bars for symbol")
	}

	return &Result{
		RunID:     uuid.NewString(),
		Config:    cfg,
		Duration:  time.Since(start),
		Metrics:   audit.Summarize(run.EquityCurve, run.Trades, cfg.RiskFreeRate),
		Risk:      audit.BuildRiskReport(audit.PeriodReturns(run.EquityCurve)),
		RunResult: run,
	}, nil
}

// Record converts the result into its persisted form
func (r *Result) Record() audit.RunRecord {
	return audit.RunRecord{
		RunID:          r.RunID,
		StrategyID:     r.Config.StrategyID,
		ConfigHash:     r.ConfigHash,
		Symbols:        r.Config.Symbols,
		StartDate:      r.Config.StartDate,
		EndDate:        r.Config.EndDate,
		InitialCapital: r.InitialCapital,
		FinalEquity:    r.FinalEquity,
		Metrics:        r.Metrics,
		Trades:         r.Trades,
	}
}

func (e *Engine) cached(ctx context.Context, key string) (*Result, bool) {
	if e.cache == nil {
		return nil, false
	}

	var result Result
	found, err := e.cache.Get(ctx, redis.BacktestKey(key), &result)
	if err != nil {
		e.logger.WithError(err).Warn("Backtest cache lookup failed")
		return nil, false
	}
	if !found {
		return nil, false
	}

	e.logger.WithField("cache_key", key).Info("Backtest cache hit")
	return &result, true
}

func dateOrOpen(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return contracts.DateKey(t)
}
