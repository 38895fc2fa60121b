package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/wuxing-quant/internal/s0_data/collector"
	"github.com/wonny/wuxing-quant/pkg/logger"
)

// PriceCollector is the collector surface the job needs
type PriceCollector interface {
	CollectPrices(ctx context.Context, symbols []string, from, to time.Time, cfg collector.Config) ([]collector.FetchResult, error)
}

// DataCollectionJob refreshes daily bars for the signal universe
// ⭐ SSOT: 데이터 수집 스케줄은 이 Job에서만
type DataCollectionJob struct {
	collector PriceCollector
	symbols   []string
	schedule  string
	lookback  int
	workers   int
	location  *time.Location
	now       func() time.Time
	logger    *logger.Logger
}

// NewDataCollectionJob creates a new data collection job
func NewDataCollectionJob(col PriceCollector, symbols []string, schedule string, lookbackDays, workers int, loc *time.Location, log *logger.Logger) *DataCollectionJob {
	if loc == nil {
		loc = time.UTC
	}
	if lookbackDays <= 0 {
		lookbackDays = 5
	}
	return &DataCollectionJob{
		collector: col,
		symbols:   symbols,
		schedule:  schedule,
		lookback:  lookbackDays,
		workers:   workers,
		location:  loc,
		now:       time.Now,
		logger:    log.WithField("job", "data_collection"),
	}
}

// Name returns the job name
func (j *DataCollectionJob) Name() string {
	return "data_collection"
}

// Schedule returns the cron schedule
func (j *DataCollectionJob) Schedule() string {
	return j.schedule
}

// Run collects the last lookback days, resuming after stored bars.
// The job fails only when every symbol failed.
func (j *DataCollectionJob) Run(ctx context.Context) error {
	y, m, d := j.now().In(j.location).Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, j.location)
	from := to.AddDate(0, 0, -j.lookback)

	results, err := j.collector.CollectPrices(ctx, j.symbols, from, to, collector.Config{
		Workers:     j.workers,
		Incremental: true,
	})
	if err != nil {
		return fmt.Errorf("collect prices: %w", err)
	}

	failed := 0
	var lastErr error
	for _, r := range results {
		if r.Error != nil {
			failed++
			lastErr = r.Error
		}
	}
	if len(results) > 0 && failed == len(results) {
		return fmt.Errorf("all %d symbols failed, last: %w", failed, lastErr)
	}

	j.logger.WithFields(map[string]interface{}{
		"symbols": len(results),
		"failed":  failed,
	}).Info("Scheduled data collection completed")
	return nil
}
