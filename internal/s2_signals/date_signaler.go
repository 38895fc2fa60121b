package s2_signals

import (
	"time"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/internal/cycle"
)

// DateSignaler derives a signal from the calendar alone:
// reference = code(date), comparison = code(date - 1 day).
// The symbol does not affect the outcome.
type DateSignaler struct {
	calc      *cycle.Calculator
	generator *Generator
}

// NewDateSignaler creates a date-driven signal source
func NewDateSignaler(calc *cycle.Calculator, generator *Generator) *DateSignaler {
	return &DateSignaler{calc: calc, generator: generator}
}

// Signal evaluates the decision for symbol on date
func (d *DateSignaler) Signal(date time.Time, symbol string) contracts.Signal {
	reference := d.calc.Strength(date)
	comparison := d.calc.Strength(date.AddDate(0, 0, -1))
	return d.generator.Evaluate(reference, comparison)
}

// Snapshot returns the signal together with the pillars it was computed from
func (d *DateSignaler) Snapshot(date time.Time, symbol string) contracts.DailySignal {
	return contracts.DailySignal{
		Date:    date,
		Symbol:  symbol,
		Pillars: d.calc.Compute(date).String(),
		Signal:  d.Signal(date, symbol),
	}
}
