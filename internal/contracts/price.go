package contracts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrInvalidSymbol marks a symbol that cannot name a data file or ticker
var ErrInvalidSymbol = errors.New("invalid symbol")

// tickers like AAPL, 005930, GC=F, ^GSPC, BTC-USD, BRK.B
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9^][A-Za-z0-9._^=-]{0,31}$`)

// ValidateSymbol rejects anything that is not a plain ticker, including path segments
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) || strings.Contains(symbol, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// PriceBar is one daily OHLCV record
// ⭐ SSOT: S0 → Backtest 가격 데이터 전달
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries is a date-ordered list of bars for one symbol
type PriceSeries []PriceBar

// DateKey normalizes a timestamp to its calendar date (YYYY-MM-DD in t's location)
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Sorted returns a copy ordered by date
func (s PriceSeries) Sorted() PriceSeries {
	out := make(PriceSeries, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Between returns bars with from <= date < to; a zero bound is open
func (s PriceSeries) Between(from, to time.Time) PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, bar := range s {
		if !from.IsZero() && bar.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !bar.Date.Before(to) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// Closes extracts closing prices in order
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, bar := range s {
		closes[i] = bar.Close
	}
	return closes
}

// PriceSource loads daily bars for a symbol within [from, to)
type PriceSource interface {
	Bars(ctx context.Context, symbol string, from, to time.Time) (PriceSeries, error)
}
