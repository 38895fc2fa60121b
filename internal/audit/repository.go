package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

// ErrRunNotFound is returned when a run ID has no stored record
var ErrRunNotFound = errors.New("backtest run not found")

// RunRecord is the persisted summary of one backtest run
type RunRecord struct {
	RunID          string                  `json:"run_id"`
	StrategyID     string                  `json:"strategy_id"`
	ConfigHash     string                  `json:"config_hash"`
	Symbols        []string                `json:"symbols"`
	StartDate      time.Time               `json:"start_date"`
	EndDate        time.Time               `json:"end_date"`
	InitialCapital float64                 `json:"initial_capital"`
	FinalEquity    float64                 `json:"final_equity"`
	Metrics        contracts.Metrics       `json:"metrics"`
	Trades         []contracts.TradeRecord `json:"trades,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}

// Repository handles backtest run persistence
// ⭐ SSOT: 백테스트 결과 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun stores the run summary and its trade log in one transaction
func (r *Repository) SaveRun(ctx context.Context, run RunRecord) error {
	id, err := uuid.Parse(run.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.RunID, err)
	}

	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO backtest_runs (
				run_id, strategy_id, config_hash, symbols, start_date, end_date,
				initial_capital, final_equity, metrics
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := tx.Exec(ctx, query,
			id, run.StrategyID, run.ConfigHash, run.Symbols,
			nullableDate(run.StartDate), nullableDate(run.EndDate),
			run.InitialCapital, run.FinalEquity, metricsJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		if len(run.Trades) == 0 {
			return nil
		}

		rows := make([][]interface{}, 0, len(run.Trades))
		for i, t := range run.Trades {
			rows = append(rows, []interface{}{
				id, i + 1, t.Date, t.Symbol, string(t.Action), t.Shares, t.Price, t.Confidence,
			})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"backtest_trades"},
			[]string{"run_id", "seq", "trade_date", "symbol", "action", "shares", "price", "confidence"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy trades: %w", err)
		}
		return nil
	})
}

// GetRun loads a run summary with its trades
func (r *Repository) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, ErrRunNotFound
	}

	query := `
		SELECT run_id::text, strategy_id, config_hash, symbols, start_date, end_date,
		       initial_capital, final_equity, metrics, created_at
		FROM backtest_runs
		WHERE run_id = $1
	`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	trades, err := r.getTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Trades = trades

	return run, nil
}

// ListRuns returns the most recent run summaries (without trades)
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT run_id::text, strategy_id, config_hash, symbols, start_date, end_date,
		       initial_capital, final_equity, metrics, created_at
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

func (r *Repository) getTrades(ctx context.Context, runID uuid.UUID) ([]contracts.TradeRecord, error) {
	query := `
		SELECT trade_date, symbol, action, shares, price, confidence
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	trades := make([]contracts.TradeRecord, 0)
	for rows.Next() {
		var t contracts.TradeRecord
		var action string
		if err := rows.Scan(&t.Date, &t.Symbol, &action, &t.Shares, &t.Price, &t.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Action = contracts.Action(action)
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var run RunRecord
	var start, end *time.Time
	var metricsJSON []byte

	err := row.Scan(
		&run.RunID, &run.StrategyID, &run.ConfigHash, &run.Symbols, &start, &end,
		&run.InitialCapital, &run.FinalEquity, &metricsJSON, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if start != nil {
		run.StartDate = *start
	}
	if end != nil {
		run.EndDate = *end
	}
	if err := json.Unmarshal(metricsJSON, &run.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}

	return &run, nil
}

func nullableDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
