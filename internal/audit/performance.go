package audit

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/risk"
)

// DefaultRiskFreeRate annual risk-free rate used for Sharpe
const DefaultRiskFreeRate = 0.03

// Summarize computes performance metrics over an equity curve whose first entry is the
// seeded initial capital. Fewer than 2 entries yield an empty map.
// ⭐ SSOT: 성과 지표 계산은 여기서만
func Summarize(equityCurve []float64, trades []contracts.TradeRecord, riskFreeRate float64) contracts.Metrics {
	metrics := contracts.Metrics{}
	if len(equityCurve) < 2 {
		return metrics
	}

	first := equityCurve[0]
	last := equityCurve[len(equityCurve)-1]

	totalReturn := 0.0
	if first != 0 {
		totalReturn = (last - first) / first
	}
	annualized := annualize(totalReturn, len(equityCurve))

	returns := PeriodReturns(equityCurve)
	volatility := 0.0
	if len(returns) > 0 {
		volatility = stat.PopStdDev(returns, nil) * math.Sqrt(risk.TradingDaysPerYear)
	}

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (annualized - riskFreeRate) / volatility
	}

	metrics[contracts.MetricTotalReturn] = totalReturn
	metrics[contracts.MetricAnnualizedReturn] = annualized
	metrics[contracts.MetricVolatility] = volatility
	metrics[contracts.MetricSharpeRatio] = sharpe
	metrics[contracts.MetricMaxDrawdown] = MaxDrawdown(equityCurve)
	metrics[contracts.MetricWinRate] = WinRate(returns)
	metrics[contracts.MetricTradeCount] = float64(len(trades))

	return metrics
}

// PeriodReturns returns period-over-period returns, excluding the seeded first entry.
// A zero previous value yields a 0 return for that period.
func PeriodReturns(equityCurve []float64) []float64 {
	if len(equityCurve) < 2 {
		return []float64{}
	}

	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (equityCurve[i]-prev)/prev)
	}
	return returns
}

// MaxDrawdown returns min over t of (equity_t - runningMax_t) / runningMax_t (≤ 0)
func MaxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) == 0 {
		return 0
	}

	peak := equityCurve[0]
	maxDD := 0.0
	for _, v := range equityCurve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// WinRate share of positive returns; 0 for an empty series
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// annualize (1+total)^(365/days) - 1
func annualize(totalReturn float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return math.Pow(1+totalReturn, 365.0/float64(days)) - 1
}
