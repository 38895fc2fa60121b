package profile

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/element"
)

// Expectation is what the dominant-to-month relation predicts for a month
type Expectation struct {
	Return     string  `json:"return"`
	Volatility string  `json:"volatility"`
	WinRate    float64 `json:"win_rate"`
	Confidence float64 `json:"confidence"`
}

// ⭐ SSOT: 관계별 기대 승률/신뢰도
var expectations = map[element.Relation]Expectation{
	element.Same:        {Return: "fairly good", Volatility: "fairly high", WinRate: 0.6, Confidence: 0.7},
	element.Generates:   {Return: "very good", Volatility: "high", WinRate: 0.7, Confidence: 0.8},
	element.GeneratedBy: {Return: "good", Volatility: "medium", WinRate: 0.65, Confidence: 0.7},
	element.Overcomes:   {Return: "fairly poor", Volatility: "high", WinRate: 0.4, Confidence: 0.6},
	element.OvercomeBy:  {Return: "poor", Volatility: "high", WinRate: 0.3, Confidence: 0.7},
	element.None:        {Return: "medium", Volatility: "medium", WinRate: 0.5, Confidence: 0.5},
}

// MonthCorrelation sets a month's observed returns against its expectation
type MonthCorrelation struct {
	MonthInfo
	Relation element.Relation `json:"relation"`
	Actual   audit.MonthStats `json:"actual"`
	Expected Expectation      `json:"expected"`

	// Accuracy = 1 - |actual win rate - expected win rate|
	Accuracy float64 `json:"accuracy"`
	// Confidence is the expected confidence scaled by Accuracy
	Confidence float64 `json:"confidence"`
}

// SeasonPattern summarizes the month means inside one season
type SeasonPattern struct {
	Season     cycle.Season `json:"season"`
	Months     int          `json:"months"` // months with data
	AvgReturn  float64      `json:"avg_return"`
	AvgWinRate float64      `json:"avg_win_rate"`
	ReturnStd  float64      `json:"return_std"` // population stdev of month means
	BestMonth  time.Month   `json:"best_month"`
	WorstMonth time.Month   `json:"worst_month"`
}

// Correlation joins an asset's outlook with its observed seasonality
type Correlation struct {
	Asset        Asset              `json:"asset"`
	Dominant     element.Element    `json:"dominant"`
	Months       []MonthCorrelation `json:"months"`
	Seasons      []SeasonPattern    `json:"seasons"`
	MeanReturn   float64            `json:"mean_return"`
	MeanWinRate  float64            `json:"mean_win_rate"`
	MeanAccuracy float64            `json:"mean_accuracy"`
	BestMonth    time.Month         `json:"best_month"`
	WorstMonth   time.Month         `json:"worst_month"`
}

// seasonMonths lists each season's months in calendar order of the season
var seasonMonths = [cycle.SeasonCount][3]time.Month{
	cycle.Spring: {time.February, time.March, time.April},
	cycle.Summer: {time.May, time.June, time.July},
	cycle.Autumn: {time.August, time.September, time.October},
	cycle.Winter: {time.November, time.December, time.January},
}

// Correlate scores each observed month against the relation between the
// profile's dominant element and the month element. Months without returns are left out.
func Correlate(p Profile, s audit.Seasonality) Correlation {
	out := Correlation{
		Asset:      p.Asset,
		Dominant:   p.Dominant,
		Months:     make([]MonthCorrelation, 0, len(s.Months)),
		Seasons:    []SeasonPattern{},
		BestMonth:  s.BestMonth,
		WorstMonth: s.WorstMonth,
	}

	byMonth := make(map[time.Month]audit.MonthStats, len(s.Months))
	var returns, winRates, accuracies []float64

	for _, ms := range s.Months {
		byMonth[ms.Month] = ms

		info := Month(ms.Month)
		rel := element.Relate(p.Dominant, info.Element)
		exp := expectations[rel]
		accuracy := 1 - math.Abs(ms.WinRate-exp.WinRate)

		out.Months = append(out.Months, MonthCorrelation{
			MonthInfo:  info,
			Relation:   rel,
			Actual:     ms,
			Expected:   exp,
			Accuracy:   accuracy,
			Confidence: exp.Confidence * accuracy,
		})

		returns = append(returns, ms.Mean)
		winRates = append(winRates, ms.WinRate)
		accuracies = append(accuracies, accuracy)
	}

	if len(returns) > 0 {
		out.MeanReturn = stat.Mean(returns, nil)
		out.MeanWinRate = stat.Mean(winRates, nil)
		out.MeanAccuracy = stat.Mean(accuracies, nil)
	}

	for season := cycle.Spring; season <= cycle.Winter; season++ {
		if sp, ok := seasonPattern(season, byMonth); ok {
			out.Seasons = append(out.Seasons, sp)
		}
	}

	return out
}

func seasonPattern(season cycle.Season, byMonth map[time.Month]audit.MonthStats) (SeasonPattern, bool) {
	sp := SeasonPattern{Season: season}

	var means, winRates []float64
	best, worst := math.Inf(-1), math.Inf(1)
	for _, m := range seasonMonths[season] {
		ms, ok := byMonth[m]
		if !ok {
			continue
		}
		means = append(means, ms.Mean)
		winRates = append(winRates, ms.WinRate)

		// 동점이면 앞 달 유지
		if ms.Mean > best {
			best, sp.BestMonth = ms.Mean, m
		}
		if ms.Mean < worst {
			worst, sp.WorstMonth = ms.Mean, m
		}
	}
	if len(means) == 0 {
		return sp, false
	}

	sp.Months = len(means)
	sp.AvgReturn = stat.Mean(means, nil)
	sp.AvgWinRate = stat.Mean(winRates, nil)
	sp.ReturnStd = stat.PopStdDev(means, nil)
	return sp, true
}

// MonthAverage is one calendar month averaged over several assets
type MonthAverage struct {
	MonthInfo
	Assets     int     `json:"assets"`
	AvgReturn  float64 `json:"avg_return"`
	AvgWinRate float64 `json:"avg_win_rate"`
}

// ElementAverage is the mean of month averages whose branch has the element
type ElementAverage struct {
	Element   element.Element `json:"element"`
	Months    int             `json:"months"`
	AvgReturn float64         `json:"avg_return"`
}

// Comparison collects the patterns several assets share
type Comparison struct {
	Assets     []Correlation    `json:"assets"`
	Months     []MonthAverage   `json:"months"`
	Elements   []ElementAverage `json:"elements"`
	BestMonth  time.Month       `json:"best_month"`
	WorstMonth time.Month       `json:"worst_month"`
}

// Compare averages every calendar month across assets and groups the averages by month element
func Compare(cs []Correlation) Comparison {
	out := Comparison{Assets: cs, Months: []MonthAverage{}, Elements: []ElementAverage{}}

	var returns, winRates [12][]float64
	for _, c := range cs {
		for _, mc := range c.Months {
			i := mc.Month - 1
			returns[i] = append(returns[i], mc.Actual.Mean)
			winRates[i] = append(winRates[i], mc.Actual.WinRate)
		}
	}

	var byElement [element.Count][]float64
	best, worst := math.Inf(-1), math.Inf(1)
	for m := time.January; m <= time.December; m++ {
		rs := returns[m-1]
		if len(rs) == 0 {
			continue
		}

		ma := MonthAverage{
			MonthInfo:  Month(m),
			Assets:     len(rs),
			AvgReturn:  stat.Mean(rs, nil),
			AvgWinRate: stat.Mean(winRates[m-1], nil),
		}
		out.Months = append(out.Months, ma)
		byElement[ma.Element] = append(byElement[ma.Element], ma.AvgReturn)

		if ma.AvgReturn > best {
			best, out.BestMonth = ma.AvgReturn, m
		}
		if ma.AvgReturn < worst {
			worst, out.WorstMonth = ma.AvgReturn, m
		}
	}

	for _, e := range element.All {
		if len(byElement[e]) == 0 {
			continue
		}
		out.Elements = append(out.Elements, ElementAverage{
			Element:   e,
			Months:    len(byElement[e]),
			AvgReturn: stat.Mean(byElement[e], nil),
		})
	}

	return out
}
