package backtest

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/wuxing-quant/internal/s2_signals"
)

// Variant overrides strategy parameters of a base config; zero values keep the base.
// Thresholds are merged field by field, so {"buy": 2} only moves the BUY threshold.
type Variant struct {
	Name             string                 `json:"name"`
	PositionFraction float64                `json:"position_fraction,omitempty"`
	Thresholds       *s2_signals.Thresholds `json:"thresholds,omitempty"`
	WeakeningPenalty *bool                  `json:"weakening_penalty,omitempty"`
}

// Apply returns base with the variant's overrides
func (v Variant) Apply(base Config) Config {
	cfg := base
	if v.PositionFraction > 0 {
		cfg.PositionFraction = v.PositionFraction
	}
	if v.Thresholds != nil {
		if cfg.Thresholds == (s2_signals.Thresholds{}) {
			cfg.Thresholds = s2_signals.DefaultThresholds()
		}
		cfg.Thresholds = cfg.Thresholds.Merge(*v.Thresholds)
	}
	if v.WeakeningPenalty != nil {
		cfg.WeakeningPenalty = *v.WeakeningPenalty
	}
	return cfg
}

// SweepResult pairs a variant with its result
type SweepResult struct {
	Variant Variant `json:"variant"`
	Result  *Result `json:"result"`
}

// Sweep loads bars once for base and runs every variant in parallel.
// Results keep the order of variants; each run owns its own Simulator and State.
func (e *Engine) Sweep(ctx context.Context, base Config, variants []Variant) ([]SweepResult, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("at least one variant is required")
	}
	for _, v := range variants {
		if err := v.Apply(base).Validate(); err != nil {
			return nil, fmt.Errorf("variant %q: %w", v.Name, err)
		}
	}

	series, err := e.Load(ctx, base)
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, len(variants))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			cfg := v.Apply(base)
			res, err := e.Simulate(cfg, series)
			if err != nil {
				return fmt.Errorf("variant %q: %w", v.Name, err)
			}
			res.ConfigHash = cfg.Hash()
			results[i] = SweepResult{Variant: v, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"variants": len(variants),
		"symbols":  base.Symbols,
	}).Info("Sweep completed")

	return results, nil
}
