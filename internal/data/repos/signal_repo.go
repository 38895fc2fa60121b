package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

// SignalRepository implements contracts.SignalRepository on daily_signals
// ⭐ SSOT: Signal 데이터 저장/조회는 여기서만
type SignalRepository struct {
	pool     *pgxpool.Pool
	location *time.Location
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool, location: time.UTC}
}

// WithLocation stamps loaded signal dates at midnight in loc
func (r *SignalRepository) WithLocation(loc *time.Location) *SignalRepository {
	if loc != nil {
		r.location = loc
	}
	return r
}

// Save upserts one snapshot; re-running a day overwrites it
func (r *SignalRepository) Save(ctx context.Context, ds contracts.DailySignal) error {
	row, err := encodeRow(ds)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO daily_signals (
			signal_date, symbol, action, confidence, strength,
			pillars, reasons, reference, comparison
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signal_date, symbol) DO UPDATE SET
			action = EXCLUDED.action,
			confidence = EXCLUDED.confidence,
			strength = EXCLUDED.strength,
			pillars = EXCLUDED.pillars,
			reasons = EXCLUDED.reasons,
			reference = EXCLUDED.reference,
			comparison = EXCLUDED.comparison,
			created_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, row...); err != nil {
		return fmt.Errorf("failed to save signal %s %s: %w", ds.Symbol, contracts.DateKey(ds.Date), err)
	}
	return nil
}

// SaveAll upserts every snapshot in one transaction
func (r *SignalRepository) SaveAll(ctx context.Context, signals []contracts.DailySignal) error {
	if len(signals) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ds := range signals {
			row, err := encodeRow(ds)
			if err != nil {
				return err
			}
			batch.Queue(`
				INSERT INTO daily_signals (
					signal_date, symbol, action, confidence, strength,
					pillars, reasons, reference, comparison
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (signal_date, symbol) DO UPDATE SET
					action = EXCLUDED.action,
					confidence = EXCLUDED.confidence,
					strength = EXCLUDED.strength,
					pillars = EXCLUDED.pillars,
					reasons = EXCLUDED.reasons,
					reference = EXCLUDED.reference,
					comparison = EXCLUDED.comparison,
					created_at = now()
			`, row...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// GetByDate retrieves every symbol's snapshot for date, ordered by symbol
func (r *SignalRepository) GetByDate(ctx context.Context, date time.Time) ([]contracts.DailySignal, error) {
	query := `
		SELECT signal_date, symbol, action, confidence, strength,
		       pillars, reasons, reference, comparison
		FROM daily_signals
		WHERE signal_date = $1
		ORDER BY symbol
	`
	return r.query(ctx, query, calendarDate(date))
}

// GetBySymbol retrieves the latest limit snapshots for symbol, newest first
func (r *SignalRepository) GetBySymbol(ctx context.Context, symbol string, limit int) ([]contracts.DailySignal, error) {
	if limit <= 0 {
		limit = 30
	}
	query := `
		SELECT signal_date, symbol, action, confidence, strength,
		       pillars, reasons, reference, comparison
		FROM daily_signals
		WHERE symbol = $1
		ORDER BY signal_date DESC
		LIMIT $2
	`
	return r.query(ctx, query, symbol, limit)
}

func (r *SignalRepository) query(ctx context.Context, query string, args ...interface{}) ([]contracts.DailySignal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	signals := []contracts.DailySignal{}
	for rows.Next() {
		var (
			ds                 contracts.DailySignal
			date               time.Time
			action             string
			reasons, ref, comp []byte
		)
		err := rows.Scan(
			&date, &ds.Symbol, &action, &ds.Signal.Confidence, &ds.Signal.Strength,
			&ds.Pillars, &reasons, &ref, &comp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		y, m, d := date.Date()
		ds.Date = time.Date(y, m, d, 0, 0, 0, 0, r.location)
		ds.Signal.Action = contracts.Action(action)

		if err := json.Unmarshal(reasons, &ds.Signal.Reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons: %w", err)
		}
		if err := json.Unmarshal(ref, &ds.Signal.Reference); err != nil {
			return nil, fmt.Errorf("failed to decode reference: %w", err)
		}
		if err := json.Unmarshal(comp, &ds.Signal.Comparison); err != nil {
			return nil, fmt.Errorf("failed to decode comparison: %w", err)
		}
		signals = append(signals, ds)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return signals, nil
}

// encodeRow flattens a snapshot into daily_signals column order
func encodeRow(ds contracts.DailySignal) ([]interface{}, error) {
	reasons := ds.Signal.Reasons
	if reasons == nil {
		reasons = []contracts.Reason{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reasons: %w", err)
	}
	refJSON, err := json.Marshal(ds.Signal.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reference: %w", err)
	}
	compJSON, err := json.Marshal(ds.Signal.Comparison)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comparison: %w", err)
	}

	return []interface{}{
		calendarDate(ds.Date), ds.Symbol, string(ds.Signal.Action),
		ds.Signal.Confidence, ds.Signal.Strength, ds.Pillars,
		reasonsJSON, refJSON, compJSON,
	}, nil
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
