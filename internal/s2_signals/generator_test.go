package s2_signals

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/cycle"
	"github.com/wonny/wuxing-quant/internal/element"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		penalty     bool
		ref, cmp    element.Vector
		wantAction  contracts.Action
		wantScore   int
		wantConf    float64
		wantReasons int
	}{
		{
			name:        "three generating pairs buy",
			ref:         element.Vector{2, 2, 2, 1, 1},
			cmp:         element.Vector{1, 1, 1, 2, 3},
			wantAction:  contracts.ActionBuy,
			wantScore:   3,
			wantConf:    0.6,
			wantReasons: 3,
		},
		{
			name:        "identical vectors hold",
			ref:         element.Vector{2, 2, 2, 1, 1},
			cmp:         element.Vector{2, 2, 2, 1, 1},
			wantAction:  contracts.ActionHold,
			wantScore:   0,
			wantConf:    0.5,
			wantReasons: 0,
		},
		{
			name:        "weakening pass offsets buy",
			penalty:     true,
			ref:         element.Vector{2, 2, 2, 1, 1},
			cmp:         element.Vector{1, 1, 1, 2, 3},
			wantAction:  contracts.ActionHold,
			wantScore:   1,
			wantConf:    0.5,
			wantReasons: 5,
		},
		{
			name:        "weakening pass reaches sell",
			penalty:     true,
			ref:         element.Vector{0, 0, 0, 0, 8},
			cmp:         element.Vector{0, 3, 2, 2, 1},
			wantAction:  contracts.ActionSell,
			wantScore:   -3,
			wantConf:    0.6,
			wantReasons: 3,
		},
		{
			name:        "same input without weakening pass holds",
			ref:         element.Vector{0, 0, 0, 0, 8},
			cmp:         element.Vector{0, 3, 2, 2, 1},
			wantAction:  contracts.ActionHold,
			wantScore:   0,
			wantConf:    0.5,
			wantReasons: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator()
			g.WeakeningPenalty = tt.penalty

			sig := g.Evaluate(tt.ref, tt.cmp)

			assert.Equal(t, tt.wantAction, sig.Action)
			assert.Equal(t, tt.wantScore, sig.Strength)
			assert.InDelta(t, tt.wantConf, sig.Confidence, 1e-12)
			assert.Len(t, sig.Reasons, tt.wantReasons)
			assert.Equal(t, tt.ref, sig.Reference)
			assert.Equal(t, tt.cmp, sig.Comparison)
		})
	}
}

func TestEvaluate_ReasonsAreStructured(t *testing.T) {
	sig := NewGenerator().Evaluate(element.Vector{2, 2, 2, 1, 1}, element.Vector{1, 1, 1, 2, 3})

	require.Len(t, sig.Reasons, 3)
	assert.Equal(t, contracts.Reason{Source: element.Wood, Target: element.Fire, Relation: element.Generates, Delta: 1}, sig.Reasons[0])
	assert.Equal(t, contracts.Reason{Source: element.Fire, Target: element.Earth, Relation: element.Generates, Delta: 1}, sig.Reasons[1])
	assert.Equal(t, contracts.Reason{Source: element.Earth, Target: element.Metal, Relation: element.Generates, Delta: 1}, sig.Reasons[2])
}

func TestEvaluate_ConfidenceCapped(t *testing.T) {
	g := &Generator{Thresholds: Thresholds{Buy: 1, Sell: -1, ConfidenceDivisor: 2, HoldConfidence: 0.5}}

	sig := g.Evaluate(element.Vector{2, 2, 2, 1, 1}, element.Vector{1, 1, 1, 2, 3})
	assert.Equal(t, contracts.ActionBuy, sig.Action)
	assert.Equal(t, 1.0, sig.Confidence)
}

func TestThresholds_Merge(t *testing.T) {
	base := DefaultThresholds()

	assert.Equal(t, base, base.Merge(Thresholds{}))
	assert.Equal(t, Thresholds{Buy: 2, Sell: -3, ConfidenceDivisor: 5, HoldConfidence: 0.5}, base.Merge(Thresholds{Buy: 2}))
	assert.Equal(t, Thresholds{Buy: 3, Sell: -4, ConfidenceDivisor: 4, HoldConfidence: 0.5}, base.Merge(Thresholds{Sell: -4, ConfidenceDivisor: 4}))
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		th      Thresholds
		wantErr bool
	}{
		{"defaults", DefaultThresholds(), false},
		{"zero buy", Thresholds{Buy: 0, Sell: -3, ConfidenceDivisor: 5}, true},
		{"zero sell", Thresholds{Buy: 3, Sell: 0, ConfidenceDivisor: 5}, true},
		{"zero divisor", Thresholds{Buy: 3, Sell: -3}, true},
		{"hold above one", Thresholds{Buy: 3, Sell: -3, ConfidenceDivisor: 5, HoldConfidence: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func randomVector(rng *rand.Rand) element.Vector {
	var v element.Vector
	for i := 0; i < 8; i++ {
		v[rng.Intn(element.Count)]++
	}
	return v
}

func TestEvaluate_DefaultScoreNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := NewGenerator()

	for i := 0; i < 2000; i++ {
		sig := g.Evaluate(randomVector(rng), randomVector(rng))
		assert.GreaterOrEqual(t, sig.Strength, 0)
		assert.NotEqual(t, contracts.ActionSell, sig.Action)
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	g := NewGenerator()

	checked := 0
	for i := 0; i < 5000; i++ {
		ref, cmp := randomVector(rng), randomVector(rng)
		for _, e := range element.All {
			target := element.GeneratedTarget(e)
			// target absent on both sides: adding it to comparison cannot change who is a source
			if ref[e] <= cmp[e] || ref[target] != 0 || cmp[target] != 0 {
				continue
			}

			before := g.Evaluate(ref, cmp).Strength
			widened := cmp
			widened[target] = 1
			after := g.Evaluate(ref, widened).Strength

			assert.Equal(t, before+1, after)
			checked++
		}
	}
	assert.Greater(t, checked, 0)
}

func TestDateSignaler(t *testing.T) {
	calc := cycle.NewCalculator()
	gen := NewGenerator()
	ds := NewDateSignaler(calc, gen)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	got := ds.Signal(date, "AAPL")
	want := gen.Evaluate(calc.Strength(date), calc.Strength(date.AddDate(0, 0, -1)))

	assert.Equal(t, want, got)
	assert.Equal(t, got, ds.Signal(date, "MSFT"), "symbol does not change the outcome")

	snap := ds.Snapshot(date, "AAPL")
	assert.Equal(t, "戊辰 丙寅 戊寅 甲子", snap.Pillars)
	assert.Equal(t, got, snap.Signal)
}

func TestComputeTechnicals(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = float64(i + 1)
	}

	tech := ComputeTechnicals(closes)
	assert.InDelta(t, 58.0, tech.MA5, 1e-9)
	assert.InDelta(t, 50.5, tech.MA20, 1e-9)
	assert.InDelta(t, 35.5, tech.MA50, 1e-9)
	assert.InDelta(t, 100.0, tech.RSI14, 1e-9)
	assert.InDelta(t, 50.5, tech.BBMid, 1e-9)
	assert.Greater(t, tech.BBUpper, tech.BBMid)
	assert.Less(t, tech.BBLower, tech.BBMid)
}

func TestComputeTechnicals_ShortSeries(t *testing.T) {
	tech := ComputeTechnicals([]float64{1, 2, 3})
	assert.Equal(t, Technicals{}, tech)
}
