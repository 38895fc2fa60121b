package database

import (
	"context"
	"fmt"
)

// schema is applied idempotently on startup of DB-backed commands.
// bars: daily OHLCV per symbol, backtest_*: persisted runs, daily_signals: scheduler snapshots.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS bars (
		symbol     TEXT        NOT NULL,
		trade_date DATE        NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		volume     BIGINT      NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, trade_date)
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id          UUID PRIMARY KEY,
		strategy_id     TEXT        NOT NULL,
		config_hash     TEXT        NOT NULL,
		symbols         TEXT[]      NOT NULL,
		start_date      DATE,
		end_date        DATE,
		initial_capital DOUBLE PRECISION NOT NULL,
		final_equity    DOUBLE PRECISION NOT NULL,
		metrics         JSONB       NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_trades (
		run_id     UUID        NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
		seq        INT         NOT NULL,
		trade_date DATE        NOT NULL,
		symbol     TEXT        NOT NULL,
		action     TEXT        NOT NULL,
		shares     BIGINT      NOT NULL,
		price      DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_signals (
		signal_date DATE        NOT NULL,
		symbol      TEXT        NOT NULL,
		action      TEXT        NOT NULL,
		confidence  DOUBLE PRECISION NOT NULL,
		strength    INT         NOT NULL,
		pillars     TEXT        NOT NULL,
		reasons     JSONB       NOT NULL,
		reference   JSONB       NOT NULL,
		comparison  JSONB       NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (signal_date, symbol)
	)`,
}

// Migrate creates the tables used by the repositories
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
