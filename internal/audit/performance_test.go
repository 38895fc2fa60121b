package audit

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

func TestSummarize_SingleRoundTrip(t *testing.T) {
	curve := []float64{100000, 100000, 100500, 100500}
	trades := []contracts.TradeRecord{
		{Symbol: "AAPL", Action: contracts.ActionBuy, Shares: 50, Price: 100, Confidence: 0.5},
		{Symbol: "AAPL", Action: contracts.ActionSell, Shares: 50, Price: 110, Confidence: 0.5},
	}

	m := Summarize(curve, trades, DefaultRiskFreeRate)

	assert.InDelta(t, 0.005, m[contracts.MetricTotalReturn], 1e-12)
	assert.InDelta(t, math.Pow(1.005, 365.0/4)-1, m[contracts.MetricAnnualizedReturn], 1e-12)
	assert.Equal(t, 2.0, m[contracts.MetricTradeCount])
	assert.InDelta(t, 1.0/3.0, m[contracts.MetricWinRate], 1e-12)
	assert.Equal(t, 0.0, m[contracts.MetricMaxDrawdown])
	assert.Greater(t, m[contracts.MetricVolatility], 0.0)
	assert.Len(t, m, len(contracts.MetricKeys))
}

func TestSummarize_MaxDrawdown(t *testing.T) {
	m := Summarize([]float64{100000, 95000, 90000, 120000}, nil, DefaultRiskFreeRate)
	assert.InDelta(t, -0.10, m[contracts.MetricMaxDrawdown], 1e-12)
}

func TestWinRate(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, WinRate([]float64{0.01, -0.02, 0.03}), 1e-12)
	assert.Equal(t, 0.0, WinRate(nil))
}

func TestSummarize_WinRateFromCurve(t *testing.T) {
	// period returns 0.01, -0.02, 0.03
	curve := []float64{100, 101}
	curve = append(curve, curve[1]*0.98)
	curve = append(curve, curve[2]*1.03)

	m := Summarize(curve, nil, DefaultRiskFreeRate)
	assert.InDelta(t, 2.0/3.0, m[contracts.MetricWinRate], 1e-12)
}

func TestSummarize_ZeroVolatility(t *testing.T) {
	m := Summarize([]float64{100000, 100000, 100000}, nil, DefaultRiskFreeRate)

	assert.Equal(t, 0.0, m[contracts.MetricVolatility])
	assert.Equal(t, 0.0, m[contracts.MetricSharpeRatio])
	assert.Equal(t, 0.0, m[contracts.MetricWinRate])
	assert.Equal(t, 0.0, m[contracts.MetricTotalReturn])
}

func TestSummarize_TooShort(t *testing.T) {
	assert.Empty(t, Summarize(nil, nil, DefaultRiskFreeRate))
	assert.Empty(t, Summarize([]float64{100000}, nil, DefaultRiskFreeRate))
}

func TestSummarize_SharpeUsesRiskFree(t *testing.T) {
	curve := []float64{100, 102, 101, 104}
	m := Summarize(curve, nil, 0.03)

	want := (m[contracts.MetricAnnualizedReturn] - 0.03) / m[contracts.MetricVolatility]
	assert.InDelta(t, want, m[contracts.MetricSharpeRatio], 1e-12)
}

func TestPeriodReturns(t *testing.T) {
	assert.Equal(t, []float64{}, PeriodReturns([]float64{100}))

	got := PeriodReturns([]float64{100, 110, 99})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, -0.1, got[1], 1e-12)
}

func TestBuildRiskReport(t *testing.T) {
	report := BuildRiskReport([]float64{0.02, -0.03, 0.01, -0.01})

	assert.Equal(t, 4, report.Samples)
	assert.Equal(t, 0.02, report.BestPeriod)
	assert.Equal(t, -0.03, report.WorstPeriod)
	assert.InDelta(t, 0.03, report.VaR95, 1e-12)
	assert.InDelta(t, 0.03, report.CVaR99, 1e-12)

	assert.Equal(t, contracts.RiskReport{}, BuildRiskReport(nil))
}

func bar(y int, m time.Month, d int, close float64) contracts.PriceBar {
	return contracts.PriceBar{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Close: close}
}

func TestMonthlySeasonality(t *testing.T) {
	series := contracts.PriceSeries{
		bar(2022, time.December, 30, 100),
		bar(2023, time.January, 3, 101),
		bar(2023, time.January, 31, 110), // Jan +10%
		bar(2023, time.February, 28, 99), // Feb -10%
		bar(2023, time.December, 29, 99), // Dec 0%
		bar(2024, time.January, 31, 118.8),
	}

	s := MonthlySeasonality(series)

	assert.Equal(t, 4, s.Periods)
	require.Len(t, s.Months, 3)

	jan := s.Months[0]
	assert.Equal(t, time.January, jan.Month)
	assert.Equal(t, 2, jan.Count)
	assert.InDelta(t, 0.15, jan.Mean, 1e-9)
	assert.InDelta(t, 0.15, jan.Median, 1e-9)
	assert.Equal(t, 1.0, jan.WinRate)
	assert.InDelta(t, 0.2, jan.Max, 1e-9)

	feb := s.Months[1]
	assert.InDelta(t, -0.1, feb.Mean, 1e-9)
	assert.Equal(t, 0.0, feb.StdDev)
	assert.InDelta(t, -0.1, feb.AvgNegative, 1e-9)

	assert.Equal(t, time.January, s.BestMonth)
	assert.Equal(t, time.February, s.WorstMonth)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
}
