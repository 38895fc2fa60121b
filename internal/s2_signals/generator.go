package s2_signals

import (
	"fmt"
	"math"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/element"
)

// Thresholds controls how a raw score becomes an action
type Thresholds struct {
	Buy               int     `json:"buy"`                // score >= Buy → BUY
	Sell              int     `json:"sell"`               // score <= Sell → SELL
	ConfidenceDivisor float64 `json:"confidence_divisor"` // confidence = min(|score| / divisor, 1)
	HoldConfidence    float64 `json:"hold_confidence"`
}

// DefaultThresholds returns ±3, divisor 5, hold 0.5
func DefaultThresholds() Thresholds {
	return Thresholds{
		Buy:               3,
		Sell:              -3,
		ConfidenceDivisor: 5,
		HoldConfidence:    0.5,
	}
}

// Merge returns t with every non-zero field of o applied
func (t Thresholds) Merge(o Thresholds) Thresholds {
	if o.Buy != 0 {
		t.Buy = o.Buy
	}
	if o.Sell != 0 {
		t.Sell = o.Sell
	}
	if o.ConfidenceDivisor != 0 {
		t.ConfidenceDivisor = o.ConfidenceDivisor
	}
	if o.HoldConfidence != 0 {
		t.HoldConfidence = o.HoldConfidence
	}
	return t
}

// Validate checks that BUY and SELL stay on opposite sides of zero
func (t Thresholds) Validate() error {
	switch {
	case t.Buy <= 0:
		return fmt.Errorf("buy threshold must be > 0, got %d", t.Buy)
	case t.Sell >= 0:
		return fmt.Errorf("sell threshold must be < 0, got %d", t.Sell)
	case t.ConfidenceDivisor <= 0:
		return fmt.Errorf("confidence divisor must be > 0, got %g", t.ConfidenceDivisor)
	case t.HoldConfidence < 0 || t.HoldConfidence > 1:
		return fmt.Errorf("hold confidence must be in [0, 1], got %g", t.HoldConfidence)
	}
	return nil
}

// Generator compares two strength vectors and scores their relations
// ⭐ SSOT: 오행 시그널 판정은 여기서만
type Generator struct {
	Thresholds Thresholds

	// WeakeningPenalty enables the mirrored pass: an element weaker in reference
	// than in comparison loses one point per present element it generates.
	// Off by default; with it off the score is never negative and SELL never fires.
	WeakeningPenalty bool
}

// NewGenerator creates a generator with default thresholds
func NewGenerator() *Generator {
	return &Generator{Thresholds: DefaultThresholds()}
}

// Evaluate scores the reference vector against the comparison vector.
// For every element e stronger in reference than in comparison, each target t
// that e generates and that is present in comparison adds one point.
func (g *Generator) Evaluate(reference, comparison element.Vector) contracts.Signal {
	score := 0
	reasons := []contracts.Reason{}

	for _, e := range element.All {
		delta := 0
		switch {
		case reference[e] > comparison[e]:
			delta = 1
		case reference[e] < comparison[e] && g.WeakeningPenalty:
			delta = -1
		default:
			continue
		}

		for _, t := range element.All {
			if element.Relate(e, t) != element.Generates || comparison[t] <= 0 {
				continue
			}
			score += delta
			reasons = append(reasons, contracts.Reason{
				Source:   e,
				Target:   t,
				Relation: element.Generates,
				Delta:    delta,
			})
		}
	}

	action, confidence := g.decide(score)

	return contracts.Signal{
		Action:     action,
		Confidence: confidence,
		Strength:   score,
		Reasons:    reasons,
		Reference:  reference,
		Comparison: comparison,
	}
}

func (g *Generator) decide(score int) (contracts.Action, float64) {
	th := g.Thresholds
	switch {
	case score >= th.Buy:
		return contracts.ActionBuy, g.confidence(score)
	case score <= th.Sell:
		return contracts.ActionSell, g.confidence(score)
	default:
		return contracts.ActionHold, th.HoldConfidence
	}
}

func (g *Generator) confidence(score int) float64 {
	if g.Thresholds.ConfidenceDivisor <= 0 {
		return 1.0
	}
	return math.Min(math.Abs(float64(score))/g.Thresholds.ConfidenceDivisor, 1.0)
}
