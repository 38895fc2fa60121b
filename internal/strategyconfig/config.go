package strategyconfig

import (
	"time"
	_ "time/tzdata" // embedded zoneinfo

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/backtest"
	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/s2_signals"
)

// Config는 오행 시그널 전략의 전체 설정
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Cycle     Cycle     `yaml:"cycle" json:"cycle"`
	Signal    Signal    `yaml:"signal" json:"signal"`
	Portfolio Portfolio `yaml:"portfolio" json:"portfolio"`
	Universe  Universe  `yaml:"universe" json:"universe"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"` // bar dates are stamped in this zone
}

// Cycle 간지 계산 기준
type Cycle struct {
	ReferenceYear int `yaml:"reference_year" json:"reference_year"` // mapped to 甲子
}

// Signal 점수 → 액션 변환 규칙
type Signal struct {
	BuyThreshold      int     `yaml:"buy_threshold" json:"buy_threshold"`
	SellThreshold     int     `yaml:"sell_threshold" json:"sell_threshold"`
	ConfidenceDivisor float64 `yaml:"confidence_divisor" json:"confidence_divisor"`
	HoldConfidence    float64 `yaml:"hold_confidence" json:"hold_confidence"`
	WeakeningPenalty  bool    `yaml:"weakening_penalty" json:"weakening_penalty"`
}

// Portfolio 자금 배분
type Portfolio struct {
	InitialCapital   float64 `yaml:"initial_capital" json:"initial_capital"`
	PositionFraction float64 `yaml:"position_fraction" json:"position_fraction"` // of cash, scaled by confidence
	RiskFreeRate     float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
}

// Universe 대상 종목과 기간
type Universe struct {
	Symbols   []string `yaml:"symbols" json:"symbols"`
	StartDate string   `yaml:"start_date,omitempty" json:"start_date,omitempty"` // YYYY-MM-DD, inclusive
	EndDate   string   `yaml:"end_date,omitempty" json:"end_date,omitempty"`     // YYYY-MM-DD, exclusive
}

// Default returns the built-in strategy
func Default() *Config {
	th := s2_signals.DefaultThresholds()
	return &Config{
		Meta: Meta{
			StrategyID: "wuxing_v1",
			Version:    "1.0.0",
			Timezone:   "UTC",
		},
		Cycle: Cycle{ReferenceYear: cycle.DefaultReferenceYear},
		Signal: Signal{
			BuyThreshold:      th.Buy,
			SellThreshold:     th.Sell,
			ConfidenceDivisor: th.ConfidenceDivisor,
			HoldConfidence:    th.HoldConfidence,
		},
		Portfolio: Portfolio{
			InitialCapital:   100000,
			PositionFraction: backtest.DefaultPositionFraction,
			RiskFreeRate:     audit.DefaultRiskFreeRate,
		},
	}
}

// Thresholds returns the signal thresholds
func (c *Config) Thresholds() s2_signals.Thresholds {
	return s2_signals.Thresholds{
		Buy:               c.Signal.BuyThreshold,
		Sell:              c.Signal.SellThreshold,
		ConfidenceDivisor: c.Signal.ConfidenceDivisor,
		HoldConfidence:    c.Signal.HoldConfidence,
	}
}

// Location resolves Meta.Timezone; empty means UTC
func (c *Config) Location() (*time.Location, error) {
	if c.Meta.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Meta.Timezone)
}

// BacktestConfig converts the strategy into an engine config.
// Universe dates are interpreted in Meta.Timezone.
func (c *Config) BacktestConfig() (backtest.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return backtest.Config{}, ValidationError{"meta.timezone", err.Error()}
	}

	start, err := parseDate(c.Universe.StartDate, loc)
	if err != nil {
		return backtest.Config{}, ValidationError{"universe.start_date", err.Error()}
	}
	end, err := parseDate(c.Universe.EndDate, loc)
	if err != nil {
		return backtest.Config{}, ValidationError{"universe.end_date", err.Error()}
	}

	return backtest.Config{
		StrategyID:       c.Meta.StrategyID,
		Symbols:          append([]string(nil), c.Universe.Symbols...),
		StartDate:        start,
		EndDate:          end,
		InitialCapital:   c.Portfolio.InitialCapital,
		PositionFraction: c.Portfolio.PositionFraction,
		RiskFreeRate:     c.Portfolio.RiskFreeRate,
		ReferenceYear:    c.Cycle.ReferenceYear,
		Thresholds:       c.Thresholds(),
		WeakeningPenalty: c.Signal.WeakeningPenalty,
	}, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}
