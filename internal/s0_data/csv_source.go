package s0_data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

// ErrSymbolNotFound means no CSV file exists for the symbol
var ErrSymbolNotFound = errors.New("symbol not found")

// CSVSource reads daily bars from <dir>/<symbol>.csv
// Columns (case-insensitive, any order): Date, Open, High, Low, Close, Volume; extra columns are ignored.
type CSVSource struct {
	dir      string
	location *time.Location
}

// NewCSVSource creates a CSV-backed price source
func NewCSVSource(dir string, loc *time.Location) *CSVSource {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVSource{dir: dir, location: loc}
}

// Path returns the file backing symbol; symbols that are not plain tickers are rejected
func (s *CSVSource) Path(symbol string) (string, error) {
	if err := contracts.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, symbol+".csv"), nil
}

// Bars implements contracts.PriceSource
func (s *CSVSource) Bars(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.Path(symbol)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", symbol, err)
	}
	defer f.Close()

	series, err := ReadCSV(f, s.location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", symbol, err)
	}
	return series.Sorted().Between(from, to), nil
}

// Save writes bars to <dir>/<symbol>.csv, replacing the file
func (s *CSVSource) Save(symbol string, bars contracts.PriceSeries) error {
	path, err := s.Path(symbol)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create csv dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", symbol, err)
	}
	if err := WriteCSV(f, bars); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// SaveBatch merges bars into the symbol's file; bars on an existing date replace it
func (s *CSVSource) SaveBatch(ctx context.Context, symbol string, bars contracts.PriceSeries) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	existing, err := s.Bars(ctx, symbol, time.Time{}, time.Time{})
	if err != nil && !errors.Is(err, ErrSymbolNotFound) {
		return 0, err
	}

	byDate := make(map[string]contracts.PriceBar, len(existing)+len(bars))
	for _, bar := range existing {
		byDate[contracts.DateKey(bar.Date)] = bar
	}
	for _, bar := range bars {
		byDate[contracts.DateKey(bar.Date)] = bar
	}

	merged := make(contracts.PriceSeries, 0, len(byDate))
	for _, bar := range byDate {
		merged = append(merged, bar)
	}
	if err := s.Save(symbol, merged.Sorted()); err != nil {
		return 0, err
	}
	return len(bars), nil
}

// LatestDate returns the newest bar date, or zero when the file is missing or empty
func (s *CSVSource) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	bars, err := s.Bars(ctx, symbol, time.Time{}, time.Time{})
	if errors.Is(err, ErrSymbolNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if len(bars) == 0 {
		return time.Time{}, nil
	}
	return bars[len(bars)-1].Date, nil
}

var csvHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// ReadCSV parses a bar CSV; rows with an empty or non-numeric close are skipped
func ReadCSV(r io.Reader, loc *time.Location) (contracts.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return contracts.PriceSeries{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"date", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	series := contracts.PriceSeries{}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := parseBarDate(field(rec, "date"), loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		closePrice, err := strconv.ParseFloat(field(rec, "close"), 64)
		if err != nil {
			continue // yfinance writes "null" for halted days
		}

		bar := contracts.PriceBar{Date: date, Close: closePrice}
		bar.Open = parseOr(field(rec, "open"), closePrice)
		bar.High = parseOr(field(rec, "high"), closePrice)
		bar.Low = parseOr(field(rec, "low"), closePrice)
		bar.Volume = int64(parseOr(field(rec, "volume"), 0))
		series = append(series, bar)
	}
	return series, nil
}

// WriteCSV writes bars with the canonical header
func WriteCSV(w io.Writer, bars contracts.PriceSeries) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	format := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	for _, bar := range bars {
		rec := []string{
			contracts.DateKey(bar.Date),
			format(bar.Open),
			format(bar.High),
			format(bar.Low),
			format(bar.Close),
			strconv.FormatInt(bar.Volume, 10),
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// parseBarDate accepts "2006-01-02" with an optional time suffix; only the calendar date is kept
func parseBarDate(s string, loc *time.Location) (time.Time, error) {
	if len(s) < 10 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.ParseInLocation("2006-01-02", s[:10], loc)
}

func parseOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
