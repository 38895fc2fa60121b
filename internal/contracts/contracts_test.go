package contracts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceSeries_SortedAndBetween(t *testing.T) {
	s := PriceSeries{
		{Date: day(3), Close: 3},
		{Date: day(1), Close: 1},
		{Date: day(2), Close: 2},
	}

	sorted := s.Sorted()
	assert.Equal(t, []float64{1, 2, 3}, sorted.Closes())
	assert.Equal(t, 3.0, s[0].Close, "original untouched")

	tests := []struct {
		name     string
		from, to time.Time
		want     []float64
	}{
		{"unbounded", time.Time{}, time.Time{}, []float64{1, 2, 3}},
		{"from inclusive", day(2), time.Time{}, []float64{2, 3}},
		{"to exclusive", time.Time{}, day(3), []float64{1, 2}},
		{"window", day(2), day(3), []float64{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sorted.Between(tt.from, tt.to).Closes())
		})
	}
}

func TestPosition(t *testing.T) {
	p := Position{Symbol: "AAPL", Shares: 50, EntryPrice: 100}
	assert.Equal(t, 5500.0, p.MarketValue(110))
	assert.InDelta(t, 0.1, p.UnrealizedReturn(110), 1e-12)
	assert.Equal(t, 0.0, Position{}.UnrealizedReturn(10))
}

func TestSignal_IsTrade(t *testing.T) {
	assert.True(t, Signal{Action: ActionBuy}.IsTrade())
	assert.True(t, Signal{Action: ActionSell}.IsTrade())
	assert.False(t, Signal{Action: ActionHold}.IsTrade())
}

func TestDateKey(t *testing.T) {
	assert.Equal(t, "2024-01-02", DateKey(day(2)))
}

func TestValidateSymbol(t *testing.T) {
	for _, ok := range []string{"AAPL", "005930", "GC=F", "^GSPC", "BTC-USD", "BRK.B"} {
		assert.NoError(t, ValidateSymbol(ok), ok)
	}
	for _, bad := range []string{"", "..", "../x", "a/b", `a\b`, "x..y", ".hidden", "AAPL ", strings.Repeat("A", 33)} {
		assert.ErrorIs(t, ValidateSymbol(bad), ErrInvalidSymbol, bad)
	}
}
