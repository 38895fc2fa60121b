package strategyconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/wuxing-quant/internal/s2_signals"
)

func TestLoad(t *testing.T) {
	cfg, yamlData, err := Load("../../config/strategy/wuxing_v1.yaml")
	require.NoError(t, err)

	assert.Equal(t, "wuxing_v1", cfg.Meta.StrategyID)
	assert.Equal(t, 1900, cfg.Cycle.ReferenceYear)
	assert.Equal(t, []string{"000001.SS", "GC=F", "BTC-USD"}, cfg.Universe.Symbols)
	assert.NotEmpty(t, yamlData)

	// 해시 생성
	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("signal:\n  buy_treshold: 4\n"))
	assert.Error(t, err)
}

func TestParse_KeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("signal:\n  weakening_penalty: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Signal.WeakeningPenalty)
	assert.Equal(t, 3, cfg.Signal.BuyThreshold)
	assert.Equal(t, 100000.0, cfg.Portfolio.InitialCapital)
}

func TestDefault_MatchesSignalDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, s2_signals.DefaultThresholds(), cfg.Thresholds())
	assert.Equal(t, 0.10, cfg.Portfolio.PositionFraction)
	assert.Equal(t, 0.03, cfg.Portfolio.RiskFreeRate)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"bad strategy id", func(c *Config) { c.Meta.StrategyID = "Wu Xing" }, "meta.strategy_id"},
		{"bad timezone", func(c *Config) { c.Meta.Timezone = "Mars/Olympus" }, "meta.timezone"},
		{"reference year", func(c *Config) { c.Cycle.ReferenceYear = 0 }, "cycle.reference_year"},
		{"buy threshold", func(c *Config) { c.Signal.BuyThreshold = 0 }, "signal.buy_threshold"},
		{"sell threshold", func(c *Config) { c.Signal.SellThreshold = 1 }, "signal.sell_threshold"},
		{"divisor", func(c *Config) { c.Signal.ConfidenceDivisor = 0 }, "signal.confidence_divisor"},
		{"hold confidence", func(c *Config) { c.Signal.HoldConfidence = 1.5 }, "signal.hold_confidence"},
		{"capital", func(c *Config) { c.Portfolio.InitialCapital = -1 }, "portfolio.initial_capital"},
		{"fraction", func(c *Config) { c.Portfolio.PositionFraction = 1.2 }, "portfolio.position_fraction"},
		{"risk free", func(c *Config) { c.Portfolio.RiskFreeRate = -0.1 }, "portfolio.risk_free_rate"},
		{"empty symbol", func(c *Config) { c.Universe.Symbols = []string{"AAPL", " "} }, "universe.symbols[1]"},
		{"duplicate symbol", func(c *Config) { c.Universe.Symbols = []string{"AAPL", "AAPL"} }, "universe.symbols[1]"},
		{"bad date", func(c *Config) { c.Universe.StartDate = "2024/01/01" }, "universe.start_date"},
		{"inverted dates", func(c *Config) {
			c.Universe.StartDate = "2024-01-01"
			c.Universe.EndDate = "2023-01-01"
		}, "universe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	codes := warningCodes(Warn(cfg))
	assert.Contains(t, codes, "SELL_UNREACHABLE")
	assert.Contains(t, codes, "EMPTY_UNIVERSE")

	cfg.Signal.WeakeningPenalty = true
	cfg.Universe.Symbols = []string{"AAPL"}
	cfg.Portfolio.PositionFraction = 0.8
	assert.Equal(t, []string{"HIGH_EXPOSURE"}, warningCodes(Warn(cfg)))
}

func warningCodes(ws []Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

func TestBacktestConfig(t *testing.T) {
	cfg := Default()
	cfg.Meta.Timezone = "Asia/Seoul"
	cfg.Universe.Symbols = []string{"005930"}
	cfg.Universe.StartDate = "2023-01-01"
	cfg.Signal.WeakeningPenalty = true

	bc, err := cfg.BacktestConfig()
	require.NoError(t, err)

	seoul, _ := time.LoadLocation("Asia/Seoul")
	assert.Equal(t, "wuxing_v1", bc.StrategyID)
	assert.Equal(t, []string{"005930"}, bc.Symbols)
	assert.True(t, bc.StartDate.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, seoul)))
	assert.True(t, bc.EndDate.IsZero())
	assert.Equal(t, cfg.Thresholds(), bc.Thresholds)
	assert.True(t, bc.WeakeningPenalty)
	assert.Equal(t, 1900, bc.ReferenceYear)
	assert.NoError(t, bc.Validate())
}
