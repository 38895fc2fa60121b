package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 기간 수익률 배열 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// 오름차순: 손실이 앞에
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1.0 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        lossOf(sorted[idx]),
		CVaR:       CalculateCVaR(sorted, idx),
	}
}

// CalculateCVaR Expected Shortfall: sorted[0..varIdx] 평균 손실
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}

	return lossOf(stat.Mean(sorted[:varIdx+1], nil))
}

// Sortino annualized mean excess return over downside deviation; 0 when there is no downside
func Sortino(returns []float64, targetReturn float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var downsideSq float64
	for _, r := range returns {
		if d := r - targetReturn; d < 0 {
			downsideSq += d * d
		}
	}
	if downsideSq == 0 {
		return 0
	}

	downside := math.Sqrt(downsideSq / float64(len(returns)))
	excess := stat.Mean(returns, nil) - targetReturn

	return excess / downside * math.Sqrt(TradingDaysPerYear)
}

func lossOf(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
