package audit

import (
	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/risk"
)

// BuildRiskReport computes tail statistics over period returns
// ⭐ SSOT: 리스크 리포팅은 여기서만
func BuildRiskReport(periodReturns []float64) contracts.RiskReport {
	report := contracts.RiskReport{Samples: len(periodReturns)}
	if len(periodReturns) == 0 {
		return report
	}

	v95 := risk.CalculateVaR(periodReturns, 0.95)
	v99 := risk.CalculateVaR(periodReturns, 0.99)

	report.VaR95, report.CVaR95 = v95.VaR, v95.CVaR
	report.VaR99, report.CVaR99 = v99.VaR, v99.CVaR
	report.Sortino = risk.Sortino(periodReturns, 0)

	report.BestPeriod = periodReturns[0]
	report.WorstPeriod = periodReturns[0]
	for _, r := range periodReturns[1:] {
		if r > report.BestPeriod {
			report.BestPeriod = r
		}
		if r < report.WorstPeriod {
			report.WorstPeriod = r
		}
	}

	return report
}
