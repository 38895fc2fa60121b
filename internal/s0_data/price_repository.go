package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

// PriceRepository implements contracts.PriceRepository on the bars table
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool     *pgxpool.Pool
	location *time.Location
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool, location: time.UTC}
}

// WithLocation stamps loaded trade dates at midnight in loc
func (r *PriceRepository) WithLocation(loc *time.Location) *PriceRepository {
	if loc != nil {
		r.location = loc
	}
	return r
}

// Bars retrieves bars for symbol with from <= trade_date < to; zero bounds are open
func (r *PriceRepository) Bars(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	query := `
		SELECT trade_date, open, high, low, close, volume
		FROM bars
		WHERE symbol = $1
		  AND ($2::date IS NULL OR trade_date >= $2::date)
		  AND ($3::date IS NULL OR trade_date < $3::date)
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, nullableDate(from), nullableDate(to))
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", symbol, err)
	}
	defer rows.Close()

	series := contracts.PriceSeries{}
	for rows.Next() {
		var bar contracts.PriceBar
		var date time.Time
		if err := rows.Scan(&date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bar.Date = r.stamp(date)
		series = append(series, bar)
	}
	return series, rows.Err()
}

// SaveBatch upserts bars in a single round trip and returns the number written
func (r *PriceRepository) SaveBatch(ctx context.Context, symbol string, bars contracts.PriceSeries) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO bars (symbol, trade_date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, bar := range bars {
		batch.Queue(query, symbol, calendarDate(bar.Date), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	saved := 0
	for range bars {
		if _, err := br.Exec(); err != nil {
			return saved, fmt.Errorf("upsert bar %s: %w", symbol, err)
		}
		saved++
	}
	return saved, nil
}

// LatestDate returns the newest stored trade date, or zero when symbol has no bars
func (r *PriceRepository) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MAX(trade_date) FROM bars WHERE symbol = $1`, symbol).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest date %s: %w", symbol, err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return r.stamp(*latest), nil
}

// Symbols lists every symbol with stored bars
func (r *PriceRepository) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func (r *PriceRepository) stamp(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, r.location)
}

// calendarDate keeps t's calendar date as UTC midnight for DATE columns
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// nullableDate maps a zero time to SQL NULL
func nullableDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return calendarDate(t)
}
