package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// PriceRepository manages daily bars
type PriceRepository interface {
	PriceSource
	SaveBatch(ctx context.Context, symbol string, bars PriceSeries) (int, error)
	LatestDate(ctx context.Context, symbol string) (time.Time, error)
}

// SignalRepository stores daily signal snapshots
type SignalRepository interface {
	Save(ctx context.Context, signal DailySignal) error
	GetByDate(ctx context.Context, date time.Time) ([]DailySignal, error)
}
