package contracts

import (
	"fmt"
	"time"

	"github.com/wonny/wuxing-quant/internal/element"
)

// Action is a trading decision
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Reason records one relation that moved the score
type Reason struct {
	Source   element.Element  `json:"source"`
	Target   element.Element  `json:"target"`
	Relation element.Relation `json:"relation"`
	Delta    int              `json:"delta"` // +1 or -1
}

func (r Reason) String() string {
	return fmt.Sprintf("%s %s %s (%+d)", r.Source, r.Relation, r.Target, r.Delta)
}

// Signal is the decision for one (date, symbol) pair; recomputed each time, never persisted by the simulator
// ⭐ SSOT: S2 → Backtest 시그널 전달
type Signal struct {
	Action     Action         `json:"action"`
	Confidence float64        `json:"confidence"` // 0.0 ~ 1.0
	Strength   int            `json:"strength"`   // raw score
	Reasons    []Reason       `json:"reasons"`
	Reference  element.Vector `json:"reference"`
	Comparison element.Vector `json:"comparison"`
}

// IsTrade reports whether the signal asks for a BUY or SELL
func (s Signal) IsTrade() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}

// DailySignal is a signal snapshot stamped with date and symbol
type DailySignal struct {
	Date    time.Time `json:"date"`
	Symbol  string    `json:"symbol"`
	Pillars string    `json:"pillars"`
	Signal  Signal    `json:"signal"`
}
