package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/s0_data/quality"
	"github.com/wonny/wuxing-quant/pkg/logger"
)

// Fetcher downloads bars for from..to (both inclusive); *naver.Client satisfies it
type Fetcher interface {
	FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error)
}

// Store persists bars; *s0_data.PriceRepository and *s0_data.CSVSource satisfy it
type Store interface {
	SaveBatch(ctx context.Context, symbol string, bars contracts.PriceSeries) (int, error)
}

// latestDater lets incremental runs resume after the newest stored bar
type latestDater interface {
	LatestDate(ctx context.Context, symbol string) (time.Time, error)
}

// ErrRejected marks a series that failed the quality gate
var ErrRejected = errors.New("rejected by quality gate")

// Collector orchestrates price collection from an external source into a store
// ⭐ SSOT: 데이터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	fetcher Fetcher
	store   Store
	gate    *quality.Gate
	logger  *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers     int  // Number of concurrent workers
	Incremental bool // Resume from the day after the newest stored bar
	Strict      bool // Skip saving series that fail the quality gate
}

// NewCollector creates a new Collector instance
func NewCollector(fetcher Fetcher, store Store, gate *quality.Gate, log *logger.Logger) *Collector {
	if gate == nil {
		gate = quality.NewGate(quality.DefaultConfig())
	}
	return &Collector{
		fetcher: fetcher,
		store:   store,
		gate:    gate,
		logger:  log.WithField("module", "collector"),
	}
}

// FetchResult represents the result of a fetch operation
type FetchResult struct {
	Symbol  string          `json:"symbol"`
	Fetched int             `json:"fetched"`
	Saved   int             `json:"saved"`
	Report  *quality.Report `json:"report,omitempty"`
	Error   error           `json:"-"`
}

// CollectPrices fetches and stores bars for every symbol; results are ordered by symbol.
// Per-symbol failures are reported in the results, not returned.
func (c *Collector) CollectPrices(ctx context.Context, symbols []string, from, to time.Time, cfg Config) ([]FetchResult, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to collect")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Workers > len(symbols) {
		cfg.Workers = len(symbols)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol_count": len(symbols),
		"from":         from.Format("2006-01-02"),
		"to":           to.Format("2006-01-02"),
		"workers":      cfg.Workers,
	}).Info("Starting price collection")

	results := make([]FetchResult, 0, len(symbols))
	resultCh := make(chan FetchResult, len(symbols))

	var wg sync.WaitGroup
	symbolCh := make(chan string, len(symbols))

	// Start workers
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.priceWorker(ctx, workerID, symbolCh, resultCh, from, to, cfg)
		}(i)
	}

	for _, symbol := range symbols {
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	successCount := 0
	failCount := 0
	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			failCount++
		} else {
			successCount++
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })

	c.logger.WithFields(map[string]interface{}{
		"success": successCount,
		"failed":  failCount,
		"total":   len(results),
	}).Info("Price collection completed")

	return results, ctx.Err()
}

// priceWorker processes price fetching for symbols
func (c *Collector) priceWorker(ctx context.Context, workerID int, symbolCh <-chan string, resultCh chan<- FetchResult, from, to time.Time, cfg Config) {
	for symbol := range symbolCh {
		select {
		case <-ctx.Done():
			resultCh <- FetchResult{Symbol: symbol, Error: ctx.Err()}
			continue
		default:
		}

		resultCh <- c.collectOne(ctx, workerID, symbol, from, to, cfg)
	}
}

func (c *Collector) collectOne(ctx context.Context, workerID int, symbol string, from, to time.Time, cfg Config) FetchResult {
	log := c.logger.WithFields(map[string]interface{}{
		"worker": workerID,
		"symbol": symbol,
	})

	start := from
	if cfg.Incremental {
		if ld, ok := c.store.(latestDater); ok {
			latest, err := ld.LatestDate(ctx, symbol)
			if err != nil {
				log.WithError(err).Warn("Failed to read latest date, fetching full range")
			} else if !latest.IsZero() && !latest.Before(start) {
				start = latest.AddDate(0, 0, 1)
			}
		}
	}
	if start.After(to) {
		log.Debug("Already up to date")
		return FetchResult{Symbol: symbol}
	}

	bars, err := c.fetcher.FetchPrices(ctx, symbol, start, to)
	if err != nil {
		log.WithError(err).Error("Failed to fetch prices")
		return FetchResult{Symbol: symbol, Error: err}
	}

	if len(bars) == 0 {
		log.Debug("No new bars")
		return FetchResult{Symbol: symbol}
	}

	cleaned := quality.Clean(bars)
	report := c.gate.Check(symbol, cleaned)
	result := FetchResult{Symbol: symbol, Fetched: len(bars), Report: &report}

	if !report.Passed {
		log.WithFields(map[string]interface{}{
			"score":  report.QualityScore,
			"issues": report.Issues,
		}).Warn("Series failed quality gate")
		if cfg.Strict {
			result.Error = fmt.Errorf("%s: %w", symbol, ErrRejected)
			return result
		}
	}

	saved, err := c.store.SaveBatch(ctx, symbol, cleaned)
	result.Saved = saved
	if err != nil {
		log.WithError(err).Error("Failed to save prices")
		result.Error = err
		return result
	}

	log.WithField("count", saved).Debug("Fetched prices")
	return result
}
