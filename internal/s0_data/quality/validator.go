package quality

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

// Gate validates a bar series before it is stored or backtested
type Gate struct {
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinQualityScore float64 `yaml:"min_quality_score"` // 0.90
	MaxGapDays      int     `yaml:"max_gap_days"`      // 10 (연휴 포함)
	MinBars         int     `yaml:"min_bars"`          // 1
}

// DefaultConfig returns the thresholds used by the fetcher
func DefaultConfig() Config {
	return Config{
		MinQualityScore: 0.90,
		MaxGapDays:      10,
		MinBars:         1,
	}
}

// Report summarizes one symbol's series
type Report struct {
	Symbol       string             `json:"symbol"`
	Bars         int                `json:"bars"`
	ValidBars    int                `json:"valid_bars"`
	InvalidClose int                `json:"invalid_close"`
	InvalidRange int                `json:"invalid_range"`
	Duplicates   int                `json:"duplicates"`
	Unordered    int                `json:"unordered"`
	LargestGap   int                `json:"largest_gap_days"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"`
	Passed       bool               `json:"passed"`
	Issues       []string           `json:"issues,omitempty"`
}

// NewGate creates a new Gate; zero fields fall back to DefaultConfig
func NewGate(config Config) *Gate {
	def := DefaultConfig()
	if config.MinQualityScore <= 0 {
		config.MinQualityScore = def.MinQualityScore
	}
	if config.MaxGapDays <= 0 {
		config.MaxGapDays = def.MaxGapDays
	}
	if config.MinBars <= 0 {
		config.MinBars = def.MinBars
	}
	return &Gate{config: config}
}

// Check validates series as given (order matters for Unordered)
// ⭐ SSOT: S0 → Backtest 품질 검증
func (g *Gate) Check(symbol string, series contracts.PriceSeries) Report {
	report := Report{
		Symbol:   symbol,
		Bars:     len(series),
		Coverage: map[string]float64{"close": 0, "ohlc": 0, "volume": 0},
	}

	if len(series) == 0 {
		report.Issues = append(report.Issues, "no bars")
		return report
	}

	seen := make(map[string]bool, len(series))
	withVolume := 0
	consistent := 0

	for i, bar := range series {
		key := contracts.DateKey(bar.Date)
		if seen[key] {
			report.Duplicates++
		}
		seen[key] = true

		if i > 0 {
			prev := series[i-1].Date
			if bar.Date.Before(prev) {
				report.Unordered++
			} else if gap := calendarDays(prev, bar.Date); gap > report.LargestGap {
				report.LargestGap = gap
			}
		}

		validClose := bar.Close > 0 && !math.IsNaN(bar.Close) && !math.IsInf(bar.Close, 0)
		if !validClose {
			report.InvalidClose++
		}

		if rangeOK(bar) {
			consistent++
		} else {
			report.InvalidRange++
		}

		if bar.Volume > 0 {
			withVolume++
		}
		if validClose && rangeOK(bar) {
			report.ValidBars++
		}
	}

	n := float64(len(series))
	report.Coverage["close"] = float64(len(series)-report.InvalidClose) / n
	report.Coverage["ohlc"] = float64(consistent) / n
	report.Coverage["volume"] = float64(withVolume) / n
	report.QualityScore = g.calculateScore(report.Coverage)

	if report.InvalidClose > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d bars with invalid close", report.InvalidClose))
	}
	if report.InvalidRange > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d bars with inconsistent high/low", report.InvalidRange))
	}
	if report.Duplicates > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d duplicate dates", report.Duplicates))
	}
	if report.Unordered > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d bars out of order", report.Unordered))
	}
	if report.LargestGap > g.config.MaxGapDays {
		report.Issues = append(report.Issues, fmt.Sprintf("gap of %d days exceeds %d", report.LargestGap, g.config.MaxGapDays))
	}
	if report.Bars < g.config.MinBars {
		report.Issues = append(report.Issues, fmt.Sprintf("%d bars below minimum %d", report.Bars, g.config.MinBars))
	}

	report.Passed = report.QualityScore >= g.config.MinQualityScore &&
		report.Bars >= g.config.MinBars &&
		report.Duplicates == 0 &&
		report.Unordered == 0 &&
		report.LargestGap <= g.config.MaxGapDays

	return report
}

// calculateScore calculates overall quality score using weighted average
func (g *Gate) calculateScore(coverage map[string]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[string]float64{
		"close":  0.50, // 신호/시뮬레이션 필수
		"ohlc":   0.30,
		"volume": 0.20, // 지수/선물은 거래량 없음
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}

// Clean sorts series, keeps the last bar per date and drops bars without a usable close
func Clean(series contracts.PriceSeries) contracts.PriceSeries {
	sorted := series.Sorted()

	out := make(contracts.PriceSeries, 0, len(sorted))
	for _, bar := range sorted {
		if bar.Close <= 0 || math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) {
			continue
		}
		if n := len(out); n > 0 && contracts.DateKey(out[n-1].Date) == contracts.DateKey(bar.Date) {
			out[n-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

// rangeOK requires low <= open,close <= high when high/low are present
func rangeOK(bar contracts.PriceBar) bool {
	if bar.High == 0 && bar.Low == 0 {
		return true
	}
	if bar.High < bar.Low {
		return false
	}
	const eps = 1e-9
	for _, p := range []float64{bar.Open, bar.Close} {
		if p == 0 {
			continue
		}
		if p < bar.Low-eps || p > bar.High+eps {
			return false
		}
	}
	return true
}

func calendarDays(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24 + 0.5)
}
