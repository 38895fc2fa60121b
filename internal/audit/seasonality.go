package audit

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

// MonthStats aggregates month-over-month close returns for one calendar month
type MonthStats struct {
	Month       time.Month `json:"month"`
	Count       int        `json:"count"`
	Mean        float64    `json:"mean"`
	Median      float64    `json:"median"`
	StdDev      float64    `json:"std_dev"` // sample stdev, 0 below 2 samples
	WinRate     float64    `json:"win_rate"`
	AvgPositive float64    `json:"avg_positive"`
	AvgNegative float64    `json:"avg_negative"`
	Max         float64    `json:"max"`
	Min         float64    `json:"min"`
}

// Seasonality per-calendar-month statistics of a price series
type Seasonality struct {
	Months     []MonthStats `json:"months"` // only months with at least one return
	BestMonth  time.Month   `json:"best_month"`
	WorstMonth time.Month   `json:"worst_month"`
	Periods    int          `json:"periods"`
}

// MonthlySeasonality resamples bars to month-end closes, computes month-over-month
// returns and groups them by calendar month
func MonthlySeasonality(series contracts.PriceSeries) Seasonality {
	closes := monthEndCloses(series.Sorted())

	byMonth := make(map[time.Month][]float64)
	periods := 0
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1].close
		if prev == 0 {
			continue
		}
		r := (closes[i].close - prev) / prev
		byMonth[closes[i].month] = append(byMonth[closes[i].month], r)
		periods++
	}

	out := Seasonality{Months: []MonthStats{}, Periods: periods}
	bestMean, worstMean := 0.0, 0.0
	for m := time.January; m <= time.December; m++ {
		returns, ok := byMonth[m]
		if !ok {
			continue
		}

		ms := monthStats(m, returns)
		if len(out.Months) == 0 || ms.Mean > bestMean {
			out.BestMonth, bestMean = m, ms.Mean
		}
		if len(out.Months) == 0 || ms.Mean < worstMean {
			out.WorstMonth, worstMean = m, ms.Mean
		}
		out.Months = append(out.Months, ms)
	}

	return out
}

type monthClose struct {
	month time.Month
	close float64
}

func monthEndCloses(sorted contracts.PriceSeries) []monthClose {
	out := []monthClose{}
	lastKey := ""
	for _, bar := range sorted {
		if bar.Close <= 0 {
			continue
		}
		key := bar.Date.Format("2006-01")
		if key == lastKey {
			out[len(out)-1].close = bar.Close
			continue
		}
		out = append(out, monthClose{month: bar.Date.Month(), close: bar.Close})
		lastKey = key
	}
	return out
}

func monthStats(m time.Month, returns []float64) MonthStats {
	ms := MonthStats{Month: m, Count: len(returns)}

	ms.Mean = stat.Mean(returns, nil)
	if len(returns) > 1 {
		ms.StdDev = stat.StdDev(returns, nil)
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	ms.Min, ms.Max = sorted[0], sorted[len(sorted)-1]
	ms.Median = median(sorted)

	var pos, neg []float64
	for _, r := range returns {
		switch {
		case r > 0:
			pos = append(pos, r)
		case r < 0:
			neg = append(neg, r)
		}
	}
	ms.WinRate = float64(len(pos)) / float64(len(returns))
	if len(pos) > 0 {
		ms.AvgPositive = stat.Mean(pos, nil)
	}
	if len(neg) > 0 {
		ms.AvgNegative = stat.Mean(neg, nil)
	}

	return ms
}

// median of a sorted slice; averages the middle pair for even lengths
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
