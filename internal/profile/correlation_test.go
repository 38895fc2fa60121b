package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/element"
)

func analyzed(t *testing.T, key string) Profile {
	t.Helper()
	a, err := Lookup(key)
	require.NoError(t, err)
	return Analyze(cycle.NewCalculator(), a)
}

func sseSeasonality() audit.Seasonality {
	return audit.Seasonality{
		Months: []audit.MonthStats{
			{Month: time.January, Count: 3, Mean: 0.02, WinRate: 0.4},
			{Month: time.February, Count: 3, Mean: 0.01, WinRate: 0.6},
			{Month: time.March, Count: 3, Mean: 0.025, WinRate: 0.8},
			{Month: time.June, Count: 3, Mean: 0.05, WinRate: 0.7},
			{Month: time.August, Count: 3, Mean: -0.03, WinRate: 0.5},
		},
		BestMonth:  time.June,
		WorstMonth: time.August,
		Periods:    15,
	}
}

func TestCorrelate(t *testing.T) {
	p := analyzed(t, "sse")
	require.Equal(t, element.Wood, p.Dominant)

	c := Correlate(p, sseSeasonality())
	require.Len(t, c.Months, 5)

	tests := []struct {
		month      time.Month
		relation   element.Relation
		expected   float64
		accuracy   float64
		confidence float64
	}{
		{time.January, element.Overcomes, 0.4, 1.0, 0.6},
		{time.February, element.Same, 0.6, 1.0, 0.7},
		{time.March, element.Same, 0.6, 0.8, 0.56},
		{time.June, element.Generates, 0.7, 1.0, 0.8},
		{time.August, element.OvercomeBy, 0.3, 0.8, 0.56},
	}

	for i, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			mc := c.Months[i]
			assert.Equal(t, tt.month, mc.Month)
			assert.Equal(t, tt.relation, mc.Relation)
			assert.InDelta(t, tt.expected, mc.Expected.WinRate, 1e-9)
			assert.InDelta(t, tt.accuracy, mc.Accuracy, 1e-9)
			assert.InDelta(t, tt.confidence, mc.Confidence, 1e-9)
		})
	}

	assert.InDelta(t, 0.92, c.MeanAccuracy, 1e-9)
	assert.InDelta(t, 0.015, c.MeanReturn, 1e-9)
	assert.InDelta(t, 0.6, c.MeanWinRate, 1e-9)
	assert.Equal(t, time.June, c.BestMonth)
	assert.Equal(t, time.August, c.WorstMonth)
}

func TestCorrelate_Seasons(t *testing.T) {
	c := Correlate(analyzed(t, "sse"), sseSeasonality())
	require.Len(t, c.Seasons, 4)

	spring := c.Seasons[0]
	assert.Equal(t, cycle.Spring, spring.Season)
	assert.Equal(t, 2, spring.Months)
	assert.InDelta(t, 0.0175, spring.AvgReturn, 1e-9)
	assert.InDelta(t, 0.7, spring.AvgWinRate, 1e-9)
	assert.InDelta(t, 0.0075, spring.ReturnStd, 1e-9)
	assert.Equal(t, time.March, spring.BestMonth)
	assert.Equal(t, time.February, spring.WorstMonth)

	winter := c.Seasons[3]
	assert.Equal(t, cycle.Winter, winter.Season)
	assert.Equal(t, 1, winter.Months)
	assert.Zero(t, winter.ReturnStd)
	assert.Equal(t, time.January, winter.BestMonth)
	assert.Equal(t, time.January, winter.WorstMonth)
}

func TestCorrelate_NoHistory(t *testing.T) {
	c := Correlate(analyzed(t, "gold"), audit.Seasonality{Months: []audit.MonthStats{}})
	assert.Empty(t, c.Months)
	assert.Empty(t, c.Seasons)
	assert.Zero(t, c.MeanAccuracy)
}

func TestCompare(t *testing.T) {
	gold := audit.Seasonality{Months: []audit.MonthStats{
		{Month: time.January, Count: 2, Mean: 0.04, WinRate: 0.6},
		{Month: time.June, Count: 2, Mean: -0.01, WinRate: 0.3},
	}}

	cmp := Compare([]Correlation{
		Correlate(analyzed(t, "sse"), sseSeasonality()),
		Correlate(analyzed(t, "gold"), gold),
	})

	require.Len(t, cmp.Assets, 2)
	require.Len(t, cmp.Months, 5)

	jan := cmp.Months[0]
	assert.Equal(t, time.January, jan.Month)
	assert.Equal(t, 2, jan.Assets)
	assert.InDelta(t, 0.03, jan.AvgReturn, 1e-9)
	assert.InDelta(t, 0.5, jan.AvgWinRate, 1e-9)

	assert.Equal(t, time.January, cmp.BestMonth)
	assert.Equal(t, time.August, cmp.WorstMonth)

	require.Len(t, cmp.Elements, 4)
	assert.Equal(t, element.Wood, cmp.Elements[0].Element)
	assert.Equal(t, 2, cmp.Elements[0].Months)
	assert.InDelta(t, 0.0175, cmp.Elements[0].AvgReturn, 1e-9)
	assert.Equal(t, element.Metal, cmp.Elements[3].Element)
	assert.InDelta(t, -0.03, cmp.Elements[3].AvgReturn, 1e-9)
}

func TestCompare_Empty(t *testing.T) {
	cmp := Compare(nil)
	assert.Empty(t, cmp.Months)
	assert.Empty(t, cmp.Elements)
}
