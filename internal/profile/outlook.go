package profile

import (
	"math"
	"time"

	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/element"
)

// MonthInfo is the fixed branch reading of a calendar month
type MonthInfo struct {
	Month   time.Month      `json:"month"`
	Branch  cycle.Branch    `json:"-"`
	Glyph   string          `json:"branch"`
	Element element.Element `json:"element"`
	Season  cycle.Season    `json:"season"`
}

// 1월=丑 ... 12월=子
var monthBranches = [12]cycle.Branch{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 0}

// Month returns the branch reading for m
func Month(m time.Month) MonthInfo {
	b := monthBranches[m-1]
	return MonthInfo{
		Month:   m,
		Branch:  b,
		Glyph:   b.Glyph(),
		Element: b.Element(),
		Season:  b.Season(),
	}
}

// Scores are relative 0.1..1.0 ratings, not forecasts of actual returns
type Scores struct {
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
	WinRate    float64 `json:"win_rate"`
	Confidence float64 `json:"confidence"`
}

// Descriptions are the bucket labels of Scores
type Descriptions struct {
	Return     string `json:"return"`
	Volatility string `json:"volatility"`
	WinRate    string `json:"win_rate"`
	Confidence string `json:"confidence"`
}

// ⭐ SSOT: 관계별 기본 점수
var baseScores = map[element.Relation]Scores{
	element.Same:        {Return: 0.6, Volatility: 0.7, WinRate: 0.6, Confidence: 0.8},
	element.Generates:   {Return: 0.8, Volatility: 0.8, WinRate: 0.7, Confidence: 0.9},
	element.GeneratedBy: {Return: 0.7, Volatility: 0.6, WinRate: 0.65, Confidence: 0.8},
	element.Overcomes:   {Return: 0.3, Volatility: 0.8, WinRate: 0.4, Confidence: 0.7},
	element.OvercomeBy:  {Return: 0.2, Volatility: 0.9, WinRate: 0.3, Confidence: 0.8},
	element.None:        {Return: 0.5, Volatility: 0.5, WinRate: 0.5, Confidence: 0.5},
}

const (
	minScore = 0.1
	maxScore = 1.0
)

// MonthOutlook is the rating of one month for an asset
type MonthOutlook struct {
	MonthInfo
	Relation     element.Relation `json:"relation"` // dominant element towards month element
	Scores       Scores           `json:"scores"`
	Descriptions Descriptions     `json:"descriptions"`
}

// Outlook rates all twelve months for a profile
type Outlook struct {
	Asset  Asset          `json:"asset"`
	Months []MonthOutlook `json:"months"`
	Best   time.Month     `json:"best_month"`
	Worst  time.Month     `json:"worst_month"`
}

// Forecast rates every calendar month against the profile's dominant element
func Forecast(p Profile) Outlook {
	out := Outlook{Asset: p.Asset, Months: make([]MonthOutlook, 0, 12)}

	best, worst := -1.0, 2.0
	for m := time.January; m <= time.December; m++ {
		mo := rateMonth(p, Month(m))
		out.Months = append(out.Months, mo)

		// 동점이면 앞 달 유지
		if mo.Scores.Return > best {
			best = mo.Scores.Return
			out.Best = m
		}
		if mo.Scores.Return < worst {
			worst = mo.Scores.Return
			out.Worst = m
		}
	}
	return out
}

func rateMonth(p Profile, month MonthInfo) MonthOutlook {
	rel := element.Relate(p.Dominant, month.Element)
	s := baseScores[rel]

	if p.Stems.Polarity == cycle.Yang {
		s.Return += 0.1
		s.Volatility += 0.1
	} else {
		s.Return -= 0.05
		s.Volatility -= 0.05
	}

	if month.Season == p.Branches.DominantSeason {
		s.Return += 0.15
		s.WinRate += 0.1
		s.Confidence += 0.1
	}

	for _, season := range p.Asset.FavouredSeasons {
		if month.Season == season {
			s.Return += p.Asset.ReturnBoost
			s.WinRate += p.Asset.WinRateBoost
			break
		}
	}

	s = Scores{
		Return:     clampScore(s.Return),
		Volatility: clampScore(s.Volatility),
		WinRate:    clampScore(s.WinRate),
		Confidence: clampScore(s.Confidence),
	}

	return MonthOutlook{
		MonthInfo:    month,
		Relation:     rel,
		Scores:       s,
		Descriptions: describe(s),
	}
}

// clampScore bounds x to [0.1, 1.0], rounded to two decimals
func clampScore(x float64) float64 {
	x = math.Max(minScore, math.Min(maxScore, x))
	return math.Round(x*100) / 100
}

func describe(s Scores) Descriptions {
	return Descriptions{
		Return:     bucket(s.Return, 0.8, 0.6, 0.4, "very good", "good", "fair", "poor"),
		Volatility: bucket(s.Volatility, 0.8, 0.6, 0.4, "very high", "high", "medium", "low"),
		WinRate:    bucket(s.WinRate, 0.7, 0.6, 0.5, "very high", "high", "medium", "low"),
		Confidence: bucket(s.Confidence, 0.8, 0.6, 0.4, "very high", "high", "medium", "low"),
	}
}

func bucket(x, hi, mid, lo float64, labels ...string) string {
	switch {
	case x >= hi:
		return labels[0]
	case x >= mid:
		return labels[1]
	case x >= lo:
		return labels[2]
	default:
		return labels[3]
	}
}
