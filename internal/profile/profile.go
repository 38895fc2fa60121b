package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/element"
)

// Asset is a tradable instrument anchored at a launch date
type Asset struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	LaunchDate time.Time `json:"launch_date"`
	Symbol     string    `json:"symbol"` // default price history ticker

	// months in these seasons get an extra boost in the outlook
	FavouredSeasons []cycle.Season `json:"favoured_seasons,omitempty"`
	ReturnBoost     float64        `json:"return_boost,omitempty"`
	WinRateBoost    float64        `json:"win_rate_boost,omitempty"`
}

func launch(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ⭐ SSOT: 내장 자산 목록
var builtinAssets = []Asset{
	{
		Key:             "sse",
		Name:            "SSE Composite",
		Symbol:          "000001.SS",
		LaunchDate:      launch(1990, time.December, 19), // 상해증권거래소 개장
		FavouredSeasons: []cycle.Season{cycle.Spring, cycle.Summer},
		ReturnBoost:     0.10,
		WinRateBoost:    0.05,
	},
	{
		Key:             "gold",
		Name:            "Gold",
		Symbol:          "GC=F",
		LaunchDate:      launch(1971, time.August, 15), // 브레튼우즈 체제 종료
		FavouredSeasons: []cycle.Season{cycle.Winter, cycle.Autumn},
		ReturnBoost:     0.10,
		WinRateBoost:    0.05,
	},
	{
		Key:             "btc",
		Name:            "BTC",
		Symbol:          "BTC-USD",
		LaunchDate:      launch(2009, time.January, 3), // genesis block
		FavouredSeasons: []cycle.Season{cycle.Winter, cycle.Spring},
		ReturnBoost:     0.15,
		WinRateBoost:    0.10,
	},
}

// Assets returns the built-in assets ordered by key
func Assets() []Asset {
	out := make([]Asset, len(builtinAssets))
	copy(out, builtinAssets)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Lookup finds a built-in asset by key or name (case-insensitive)
func Lookup(name string) (Asset, error) {
	for _, a := range builtinAssets {
		if strings.EqualFold(a.Key, name) || strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("unknown asset: %s", name)
}

// StemStats counts stem polarities
type StemStats struct {
	Yang     int            `json:"yang"`
	Yin      int            `json:"yin"`
	Polarity cycle.Polarity `json:"-"`
	Nature   string         `json:"nature"`
}

// BranchStats counts branch seasons
type BranchStats struct {
	Seasons        [cycle.SeasonCount]int `json:"seasons"` // spring, summer, autumn, winter
	DominantSeason cycle.Season           `json:"dominant_season"`
	SeasonSpread   int                    `json:"season_spread"` // max - min
}

// Behavior is the qualitative market temperament of a dominant element
type Behavior struct {
	Volatility      string `json:"volatility"`
	TrendStrength   string `json:"trend_strength"`
	RiskLevel       string `json:"risk_level"`
	GrowthPotential string `json:"growth_potential"`
}

// 주도 오행별 시장 성향
var behaviors = [element.Count]Behavior{
	element.Wood:  {"high", "strong", "high", "high"},
	element.Fire:  {"very high", "very strong", "very high", "very high"},
	element.Earth: {"low", "weak", "low", "low"},
	element.Metal: {"medium", "medium", "medium", "medium"},
	element.Water: {"high", "strong", "high", "high"},
}

// Profile is the pillar reading of an asset's launch date
type Profile struct {
	Asset    Asset           `json:"asset"`
	Pillars  cycle.PillarSet `json:"pillars"`
	Strength element.Vector  `json:"strength"`
	Dominant element.Element `json:"dominant"`
	Weakest  element.Element `json:"weakest"`
	Balance  float64         `json:"balance"`
	Stems    StemStats       `json:"stems"`
	Branches BranchStats     `json:"branches"`
	Behavior Behavior        `json:"behavior"`
}

// Analyze builds the profile of asset with calc
func Analyze(calc *cycle.Calculator, asset Asset) Profile {
	ps := calc.Compute(asset.LaunchDate)
	strength := cycle.StrengthVector(ps)
	dominant := strength.Dominant()

	return Profile{
		Asset:    asset,
		Pillars:  ps,
		Strength: strength,
		Dominant: dominant,
		Weakest:  strength.Weakest(),
		Balance:  strength.Balance(),
		Stems:    stemStats(ps),
		Branches: branchStats(ps),
		Behavior: behaviors[dominant],
	}
}

func stemStats(ps cycle.PillarSet) StemStats {
	var s StemStats
	for _, p := range ps.Pillars() {
		if p.Stem.Polarity() == cycle.Yang {
			s.Yang++
		} else {
			s.Yin++
		}
	}

	// 동수면 음
	s.Polarity = cycle.Yin
	if s.Yang > s.Yin {
		s.Polarity = cycle.Yang
	}
	s.Nature = s.Polarity.String()
	return s
}

func branchStats(ps cycle.PillarSet) BranchStats {
	var b BranchStats
	for _, p := range ps.Pillars() {
		b.Seasons[p.Branch.Season()]++
	}

	maxCount, minCount := b.Seasons[0], b.Seasons[0]
	b.DominantSeason = cycle.Spring
	for season := cycle.Spring; season <= cycle.Winter; season++ {
		n := b.Seasons[season]
		if n > maxCount {
			maxCount = n
			b.DominantSeason = season
		}
		if n < minCount {
			minCount = n
		}
	}
	b.SeasonSpread = maxCount - minCount
	return b
}
