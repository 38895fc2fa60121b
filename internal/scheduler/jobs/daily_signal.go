package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/pkg/logger"
	"github.com/wonny/wuxing-quant/pkg/redis"
)

// Snapshotter produces a stamped signal; *s2_signals.DateSignaler satisfies it
type Snapshotter interface {
	Snapshot(date time.Time, symbol string) contracts.DailySignal
}

// DailySignalJob stores today's signal for every configured symbol
// ⭐ SSOT: 일일 시그널 스냅샷 스케줄은 이 Job에서만
type DailySignalJob struct {
	signaler Snapshotter
	repo     contracts.SignalRepository
	cache    *redis.Cache
	symbols  []string
	schedule string
	location *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewDailySignalJob creates a new daily signal job; repo and cache may be nil
func NewDailySignalJob(signaler Snapshotter, repo contracts.SignalRepository, cache *redis.Cache, symbols []string, schedule string, loc *time.Location, log *logger.Logger) *DailySignalJob {
	if loc == nil {
		loc = time.UTC
	}
	return &DailySignalJob{
		signaler: signaler,
		repo:     repo,
		cache:    cache,
		symbols:  symbols,
		schedule: schedule,
		location: loc,
		now:      time.Now,
		logger:   log.WithField("job", "daily_signal"),
	}
}

// Name returns the job name
func (j *DailySignalJob) Name() string {
	return "daily_signal"
}

// Schedule returns the cron schedule
func (j *DailySignalJob) Schedule() string {
	return j.schedule
}

// Run computes and stores the snapshot for today's midnight in the job's location
func (j *DailySignalJob) Run(ctx context.Context) error {
	y, m, d := j.now().In(j.location).Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, j.location)
	return j.RunFor(ctx, date)
}

// RunFor computes and stores snapshots for date
func (j *DailySignalJob) RunFor(ctx context.Context, date time.Time) error {
	if len(j.symbols) == 0 {
		return errors.New("no symbols configured")
	}

	snapshots := make([]contracts.DailySignal, 0, len(j.symbols))
	var errs []error
	for _, symbol := range j.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}

		ds := j.signaler.Snapshot(date, symbol)
		if j.repo != nil {
			if err := j.repo.Save(ctx, ds); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
				continue
			}
		}
		snapshots = append(snapshots, ds)

		j.logger.WithFields(map[string]interface{}{
			"symbol":     symbol,
			"action":     ds.Signal.Action,
			"confidence": ds.Signal.Confidence,
			"strength":   ds.Signal.Strength,
		}).Debug("Signal stored")
	}

	if j.cache != nil && len(snapshots) > 0 {
		if err := j.cache.Set(ctx, redis.SignalKey(contracts.DateKey(date)), snapshots, redis.TTLDaily); err != nil {
			j.logger.WithError(err).Warn("Failed to cache signals")
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"date":   contracts.DateKey(date),
		"stored": len(snapshots),
		"failed": len(errs),
	}).Info("Daily signals computed")

	return errors.Join(errs...)
}
