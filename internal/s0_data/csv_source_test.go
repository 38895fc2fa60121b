package s0_data

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"yfinance export", "Date,Open,High,Low,Close,Adj Close,Volume\n2024-01-02,10,11,9,10.5,10.4,1000\n2024-01-03,10.5,12,10,11,10.9,2000\n", 2, false},
		{"bom and lowercase", "\ufeffdate,close\n2024-01-02,10\n", 1, false},
		{"null close skipped", "Date,Close\n2024-01-02,null\n2024-01-03,11\n", 1, false},
		{"timestamp suffix", "Date,Close\n2024-01-02 00:00:00+08:00,10\n", 1, false},
		{"empty file", "", 0, false},
		{"header only", "Date,Close\n", 0, false},
		{"missing close column", "Date,Open\n2024-01-02,10\n", 0, true},
		{"bad date", "Date,Close\n02/01/2024,10\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(tt.input), time.UTC)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestReadCSV_Fallbacks(t *testing.T) {
	got, err := ReadCSV(strings.NewReader("Date,Close\n2024-01-02,10\n"), time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, contracts.PriceBar{Date: day(2), Open: 10, High: 10, Low: 10, Close: 10}, got[0])
}

func TestReadCSV_Location(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	got, err := ReadCSV(strings.NewReader("Date,Close\n2024-01-02,10\n"), loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, loc), got[0].Date)
}

func TestCSVSource_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := NewCSVSource(filepath.Join(dir, "bars"), time.UTC)
	ctx := context.Background()

	bars := contracts.PriceSeries{
		{Date: day(3), Open: 11, High: 12, Low: 10, Close: 11.5, Volume: 200},
		{Date: day(2), Open: 10, High: 11, Low: 9, Close: 10.25, Volume: 100},
		{Date: day(4), Open: 12, High: 13, Low: 11, Close: 12.75, Volume: 300},
	}
	require.NoError(t, src.Save("GC=F", bars))

	got, err := src.Bars(ctx, "GC=F", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, bars.Sorted(), got)

	// [from, to)
	got, err = src.Bars(ctx, "GC=F", day(3), day(4))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 11.5, got[0].Close)

	path, err := src.Path("GC=F")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Date,Open,High,Low,Close,Volume\n"))
}

func TestCSVSource_RejectsPathSymbols(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "private.csv"), []byte("Date,Close\n2024-01-02,42\n"), 0o644))

	src := NewCSVSource(filepath.Join(root, "data"), time.UTC)
	ctx := context.Background()

	for _, symbol := range []string{"../outside/private", "..", "a/b", `a\b`, "/etc/passwd", ""} {
		t.Run(symbol, func(t *testing.T) {
			_, err := src.Bars(ctx, symbol, time.Time{}, time.Time{})
			assert.ErrorIs(t, err, contracts.ErrInvalidSymbol)

			_, err = src.SaveBatch(ctx, symbol, contracts.PriceSeries{{Date: day(2), Close: 1}})
			assert.ErrorIs(t, err, contracts.ErrInvalidSymbol)
		})
	}

	_, err := os.Stat(filepath.Join(root, "data"))
	assert.True(t, os.IsNotExist(err), "nothing written for rejected symbols")
}

func TestCSVSource_NotFound(t *testing.T) {
	src := NewCSVSource(t.TempDir(), nil)

	_, err := src.Bars(context.Background(), "NOPE", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrSymbolNotFound)

	latest, err := src.LatestDate(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.True(t, latest.IsZero())
}

func TestCSVSource_SaveBatchMerges(t *testing.T) {
	src := NewCSVSource(t.TempDir(), time.UTC)
	ctx := context.Background()

	n, err := src.SaveBatch(ctx, "BTC-USD", contracts.PriceSeries{
		{Date: day(2), Close: 10},
		{Date: day(3), Close: 11},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// day 3 갱신 + day 4 추가
	n, err = src.SaveBatch(ctx, "BTC-USD", contracts.PriceSeries{
		{Date: day(4), Close: 13},
		{Date: day(3), Close: 12},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := src.Bars(ctx, "BTC-USD", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 13}, got.Closes())

	latest, err := src.LatestDate(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, day(4), latest)

	n, err = src.SaveBatch(ctx, "BTC-USD", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCSVSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVSource(t.TempDir(), time.UTC).Bars(ctx, "X", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}
