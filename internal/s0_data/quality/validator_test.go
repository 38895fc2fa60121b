package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func bar(d int, close float64) contracts.PriceBar {
	return contracts.PriceBar{Date: day(d), Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1000}
}

func TestGate_Check(t *testing.T) {
	gate := NewGate(DefaultConfig())

	tests := []struct {
		name       string
		series     contracts.PriceSeries
		wantPassed bool
		wantValid  int
		check      func(t *testing.T, r Report)
	}{
		{
			name:       "clean series",
			series:     contracts.PriceSeries{bar(2, 100), bar(3, 101), bar(4, 102)},
			wantPassed: true,
			wantValid:  3,
			check: func(t *testing.T, r Report) {
				assert.InDelta(t, 1.0, r.QualityScore, 1e-9)
				assert.Equal(t, 1, r.LargestGap)
				assert.Empty(t, r.Issues)
			},
		},
		{
			name:       "empty",
			series:     contracts.PriceSeries{},
			wantPassed: false,
			check: func(t *testing.T, r Report) {
				assert.Equal(t, []string{"no bars"}, r.Issues)
				assert.Zero(t, r.QualityScore)
			},
		},
		{
			name:       "duplicate date",
			series:     contracts.PriceSeries{bar(2, 100), bar(2, 101), bar(3, 102)},
			wantPassed: false,
			wantValid:  3,
			check: func(t *testing.T, r Report) {
				assert.Equal(t, 1, r.Duplicates)
			},
		},
		{
			name:       "out of order",
			series:     contracts.PriceSeries{bar(3, 100), bar(2, 101)},
			wantPassed: false,
			wantValid:  2,
			check: func(t *testing.T, r Report) {
				assert.Equal(t, 1, r.Unordered)
			},
		},
		{
			name:       "long gap",
			series:     contracts.PriceSeries{bar(2, 100), bar(20, 101)},
			wantPassed: false,
			wantValid:  2,
			check: func(t *testing.T, r Report) {
				assert.Equal(t, 18, r.LargestGap)
			},
		},
		{
			name: "invalid close and range",
			series: contracts.PriceSeries{
				bar(2, 100),
				{Date: day(3), Close: 0},
				{Date: day(4), Open: 100, High: 90, Low: 95, Close: 92},
				bar(5, 101),
			},
			wantPassed: false,
			wantValid:  2,
			check: func(t *testing.T, r Report) {
				assert.Equal(t, 1, r.InvalidClose)
				assert.Equal(t, 1, r.InvalidRange)
				assert.InDelta(t, 0.75, r.Coverage["close"], 1e-9)
				assert.InDelta(t, 0.75, r.Coverage["ohlc"], 1e-9)
				assert.InDelta(t, 0.5, r.Coverage["volume"], 1e-9)
				assert.InDelta(t, 0.7, r.QualityScore, 1e-9)
				assert.Len(t, r.Issues, 2)
			},
		},
		{
			name: "close only bars without volume",
			series: contracts.PriceSeries{
				{Date: day(2), Close: 100},
				{Date: day(3), Close: 101},
			},
			wantPassed: false,
			wantValid:  2,
			check: func(t *testing.T, r Report) {
				assert.InDelta(t, 0.80, r.QualityScore, 1e-9)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gate.Check("TEST", tt.series)
			assert.Equal(t, "TEST", r.Symbol)
			assert.Equal(t, len(tt.series), r.Bars)
			assert.Equal(t, tt.wantPassed, r.Passed)
			assert.Equal(t, tt.wantValid, r.ValidBars)
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}

func TestNewGate_Defaults(t *testing.T) {
	gate := NewGate(Config{})
	assert.Equal(t, DefaultConfig(), gate.config)

	// 완화된 기준
	lenient := NewGate(Config{MinQualityScore: 0.5, MaxGapDays: 30})
	r := lenient.Check("X", contracts.PriceSeries{{Date: day(2), Close: 100}, {Date: day(25), Close: 101}})
	assert.True(t, r.Passed)
}

func TestGate_calculateScore(t *testing.T) {
	gate := &Gate{config: Config{}}

	tests := []struct {
		name     string
		coverage map[string]float64
		want     float64
	}{
		{"perfect coverage", map[string]float64{"close": 1, "ohlc": 1, "volume": 1}, 1.0},
		{"no volume", map[string]float64{"close": 1, "ohlc": 1, "volume": 0}, 0.8},
		{"poor coverage", map[string]float64{"close": 0.6, "ohlc": 0.5, "volume": 0.3}, 0.51},
		{"missing keys", map[string]float64{"close": 1}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, gate.calculateScore(tt.coverage), 1e-9)
		})
	}
}

func TestClean(t *testing.T) {
	series := contracts.PriceSeries{
		bar(4, 104),
		bar(2, 100),
		{Date: day(3), Close: math.NaN()},
		bar(2, 102),
		{Date: day(5), Close: -1},
	}

	got := Clean(series)
	require.Len(t, got, 2)
	assert.Equal(t, day(2), got[0].Date)
	assert.Equal(t, 102.0, got[0].Close) // 마지막 값 유지
	assert.Equal(t, day(4), got[1].Date)

	assert.True(t, NewGate(DefaultConfig()).Check("X", got).Passed)
}
