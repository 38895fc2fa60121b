package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/wuxing-quant/internal/audit"
	"github.com/wonny/wuxing-quant/internal/backtest"
	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/data/repos"
	"github.com/wonny/wuxing-quant/internal/external/naver"
	"github.com/wonny/wuxing-quant/internal/s0_data"
	"github.com/wonny/wuxing-quant/internal/s0_data/collector"
	"github.com/wonny/wuxing-quant/internal/s0_data/quality"
	"github.com/wonny/wuxing-quant/internal/s2_signals"
	"github.com/wonny/wuxing-quant/internal/strategyconfig"
	"github.com/wonny/wuxing-quant/pkg/config"
	"github.com/wonny/wuxing-quant/pkg/database"
	"github.com/wonny/wuxing-quant/pkg/httputil"
	"github.com/wonny/wuxing-quant/pkg/logger"
	"github.com/wonny/wuxing-quant/pkg/redis"
)

// app bundles the dependencies shared by commands.
// The database and Redis are optional: without DATABASE_URL bars come from CSV files.
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	strategy     *strategyconfig.Config
	strategyFile string
	location     *time.Location

	db    *database.DB  // nil without DATABASE_URL
	redis *redis.Client // disabled unless REDIS_ENABLED
	store contracts.PriceRepository
}

type appOptions struct {
	strategyFile string
	csvDir       string
	useDB        bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if opts.strategyFile == "" {
		opts.strategyFile = cfg.StrategyFile
	}
	if opts.csvDir == "" {
		opts.csvDir = cfg.CSVDir
	}

	log := logger.New(cfg)

	strategy, err := strategyconfig.LoadOrDefault(opts.strategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy: %w", err)
	}

	// 전략 파일에 timezone이 있으면 우선
	loc := cfg.Location()
	if opts.strategyFile != "" && strategy.Meta.Timezone != "" {
		if loc, err = strategy.Location(); err != nil {
			return nil, fmt.Errorf("strategy timezone: %w", err)
		}
	}

	a := &app{cfg: cfg, log: log, strategy: strategy, strategyFile: opts.strategyFile, location: loc}

	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if opts.useDB && cfg.Database.URL != "" {
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := a.db.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.store = s0_data.NewPriceRepository(a.db.Pool).WithLocation(loc)
		log.Info("Connected to database")
	} else {
		a.store = s0_data.NewCSVSource(opts.csvDir, loc)
		log.WithField("dir", opts.csvDir).Debug("Using CSV bar files")
	}

	return a, nil
}

// Close releases the database pool and Redis connection
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// source returns the bar source, behind the Redis cache when enabled
func (a *app) source() contracts.PriceSource {
	if !a.redis.Enabled() {
		return a.store
	}
	return s0_data.NewCachedSource(a.store, redis.NewCache(a.redis, "wx"), redis.TTLDaily, a.log)
}

// cache returns a cache helper, or nil when Redis is disabled
func (a *app) cache() *redis.Cache {
	if !a.redis.Enabled() {
		return nil
	}
	return redis.NewCache(a.redis, "wx")
}

// engine builds a backtest engine; runs are stored when the database is connected
func (a *app) engine() *backtest.Engine {
	e := backtest.NewEngine(a.source(), a.log)
	if a.db != nil {
		e.WithStore(audit.NewRepository(a.db.Pool))
	}
	if c := a.cache(); c != nil {
		e.WithCache(c, a.cfg.Backtest.CacheTTL)
	}
	return e
}

// signalRepo returns the signal repository, or nil without a database
func (a *app) signalRepo() *repos.SignalRepository {
	if a.db == nil {
		return nil
	}
	return repos.NewSignalRepository(a.db.Pool).WithLocation(a.location)
}

// calculator returns a calculator anchored at the strategy's reference year
func (a *app) calculator() *cycle.Calculator {
	calc := cycle.NewCalculator()
	if a.strategy.Cycle.ReferenceYear != 0 {
		calc.ReferenceYear = a.strategy.Cycle.ReferenceYear
	}
	return calc
}

// signaler builds the date signaler from the strategy's signal rules
func (a *app) signaler() *s2_signals.DateSignaler {
	gen := s2_signals.NewGenerator()
	gen.Thresholds = a.strategy.Thresholds()
	gen.WeakeningPenalty = a.strategy.Signal.WeakeningPenalty
	return s2_signals.NewDateSignaler(a.calculator(), gen)
}

// backtestDefaults merges the strategy with environment defaults
func (a *app) backtestDefaults() (backtest.Config, error) {
	cfg, err := a.strategy.BacktestConfig()
	if err != nil {
		return backtest.Config{}, err
	}
	if a.strategyFile == "" {
		cfg.InitialCapital = a.cfg.Backtest.InitialCapital
		cfg.RiskFreeRate = a.cfg.Backtest.RiskFreeRate
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = append([]string(nil), a.cfg.Signal.Symbols...)
	}
	return cfg, nil
}

// parseDay parses YYYY-MM-DD in loc; empty is the zero time
func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// today returns midnight of the current date in loc
func today(loc *time.Location) time.Time {
	y, m, d := time.Now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// collector wires the Naver client into the configured bar store
func (a *app) collector(gate *quality.Gate) *collector.Collector {
	hc := httputil.New(a.log, a.cfg.Naver.RateLimit)
	client := naver.NewClient(hc, a.log).
		WithURLs(a.cfg.Naver.BaseURL, a.cfg.Naver.ChartURL).
		WithLocation(a.location)
	return collector.NewCollector(client, a.store, gate, a.log)
}
