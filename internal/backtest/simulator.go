package backtest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/pkg/logger"
)

var (
	// ErrNoData means no requested symbol had a usable bar
	ErrNoData = errors.New("no price data")
	// ErrInvalidCapital means initial capital was not positive
	ErrInvalidCapital = errors.New("initial capital must be > 0")
)

// NoDataError lists the symbols that were requested when no data was usable
type NoDataError struct {
	Symbols []string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no price data for any of [%s]", strings.Join(e.Symbols, ", "))
}

// Unwrap lets errors.Is match ErrNoData
func (e *NoDataError) Unwrap() error {
	return ErrNoData
}

// DefaultPositionFraction share of cash × confidence committed per BUY
const DefaultPositionFraction = 0.10

// SignalSource decides the action for a symbol on a date
type SignalSource interface {
	Signal(date time.Time, symbol string) contracts.Signal
}

// State is the portfolio aggregate owned by a single Run
type State struct {
	Cash        float64
	Positions   map[string]*contracts.Position
	EquityCurve []float64 // seeded with initial capital
	Points      []contracts.EquityPoint
	Trades      []contracts.TradeRecord
}

// NewState creates a flat portfolio holding only cash
func NewState(initialCapital float64) *State {
	return &State{
		Cash:        initialCapital,
		Positions:   make(map[string]*contracts.Position),
		EquityCurve: []float64{initialCapital},
		Points:      make([]contracts.EquityPoint, 0),
		Trades:      make([]contracts.TradeRecord, 0),
	}
}

// RunResult is the output of one simulation
type RunResult struct {
	InitialCapital float64                 `json:"initial_capital"`
	FinalEquity    float64                 `json:"final_equity"`
	Cash           float64                 `json:"cash"`
	EquityCurve    []float64               `json:"equity_curve"`
	Points         []contracts.EquityPoint `json:"points"`
	Trades         []contracts.TradeRecord `json:"trades"`
	OpenPositions  []contracts.Position    `json:"open_positions"`
	Skipped        []string                `json:"skipped,omitempty"` // requested symbols without usable bars
}

// Simulator replays signals over daily bars
// ⭐ SSOT: 백테스팅 시뮬레이션은 여기서만
type Simulator struct {
	source           SignalSource
	positionFraction float64
	logger           *logger.Logger
}

// NewSimulator creates a simulator; fraction <= 0 falls back to DefaultPositionFraction
func NewSimulator(source SignalSource, positionFraction float64, log *logger.Logger) *Simulator {
	if positionFraction <= 0 {
		positionFraction = DefaultPositionFraction
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Simulator{
		source:           source,
		positionFraction: positionFraction,
		logger:           log,
	}
}

// Run simulates symbols (in the given order) over the union of their bar dates.
// Each call owns a fresh State.
func (s *Simulator) Run(symbols []string, series map[string]contracts.PriceSeries, initialCapital float64) (*RunResult, error) {
	if initialCapital <= 0 || math.IsNaN(initialCapital) || math.IsInf(initialCapital, 0) {
		return nil, ErrInvalidCapital
	}

	book := newBarBook(symbols, series)
	if len(book.dates) == 0 {
		return nil, &NoDataError{Symbols: append([]string(nil), symbols...)}
	}

	state := NewState(initialCapital)
	for _, key := range book.dates {
		s.step(state, book, key)
	}

	return s.result(state, initialCapital, book), nil
}

// step processes every symbol with a bar on one date, then marks to market
func (s *Simulator) step(state *State, book *barBook, key string) {
	decisionDate := book.decision[key]
	unrealized := 0.0

	for _, symbol := range book.symbols {
		bar, ok := book.bars[symbol][key]
		if !ok {
			continue
		}

		sig := s.source.Signal(decisionDate, symbol)
		pos, open := state.Positions[symbol]

		switch {
		case sig.Action == contracts.ActionBuy && !open:
			s.buy(state, symbol, bar, decisionDate, sig.Confidence)
		case sig.Action == contracts.ActionSell && open:
			s.sell(state, pos, bar, decisionDate, sig.Confidence)
		}

		if pos, open := state.Positions[symbol]; open {
			unrealized += pos.UnrealizedReturn(bar.Close)
		}
	}

	// positions without a bar today are held but not marked
	positionValue := 0.0
	for _, symbol := range book.symbols {
		pos, open := state.Positions[symbol]
		if !open {
			continue
		}
		if bar, ok := book.bars[symbol][key]; ok {
			positionValue += pos.MarketValue(bar.Close)
		}
	}

	equity := state.Cash + positionValue
	prev := state.EquityCurve[len(state.EquityCurve)-1]
	periodReturn := 0.0
	if prev != 0 {
		periodReturn = (equity - prev) / prev
	}

	state.EquityCurve = append(state.EquityCurve, equity)
	state.Points = append(state.Points, contracts.EquityPoint{
		Date:             decisionDate,
		Equity:           equity,
		Return:           periodReturn,
		UnrealizedReturn: unrealized,
	})
}

func (s *Simulator) buy(state *State, symbol string, bar contracts.PriceBar, date time.Time, confidence float64) {
	shares := int64(math.Floor(state.Cash * confidence * s.positionFraction / bar.Close))
	if shares <= 0 {
		return
	}

	state.Cash -= float64(shares) * bar.Close
	state.Positions[symbol] = &contracts.Position{
		Symbol:     symbol,
		Shares:     shares,
		EntryPrice: bar.Close,
		EntryDate:  date,
	}
	s.record(state, contracts.TradeRecord{
		Date:       date,
		Symbol:     symbol,
		Action:     contracts.ActionBuy,
		Shares:     shares,
		Price:      bar.Close,
		Confidence: confidence,
	})
}

func (s *Simulator) sell(state *State, pos *contracts.Position, bar contracts.PriceBar, date time.Time, confidence float64) {
	state.Cash += pos.MarketValue(bar.Close)
	s.record(state, contracts.TradeRecord{
		Date:       date,
		Symbol:     pos.Symbol,
		Action:     contracts.ActionSell,
		Shares:     pos.Shares,
		Price:      bar.Close,
		Confidence: confidence,
	})
	delete(state.Positions, pos.Symbol)
}

func (s *Simulator) record(state *State, trade contracts.TradeRecord) {
	state.Trades = append(state.Trades, trade)

	s.logger.WithFields(map[string]interface{}{
		"date":   contracts.DateKey(trade.Date),
		"symbol": trade.Symbol,
		"action": string(trade.Action),
		"shares": trade.Shares,
		"price":  trade.Price,
		"cash":   state.Cash,
	}).Debug("Simulated trade")
}

func (s *Simulator) result(state *State, initialCapital float64, book *barBook) *RunResult {
	open := make([]contracts.Position, 0, len(state.Positions))
	for _, symbol := range book.symbols {
		if pos, ok := state.Positions[symbol]; ok {
			open = append(open, *pos)
		}
	}

	return &RunResult{
		InitialCapital: initialCapital,
		FinalEquity:    state.EquityCurve[len(state.EquityCurve)-1],
		Cash:           state.Cash,
		EquityCurve:    state.EquityCurve,
		Points:         state.Points,
		Trades:         state.Trades,
		OpenPositions:  open,
		Skipped:        book.skipped,
	}
}

// barBook indexes usable bars by symbol and calendar date
type barBook struct {
	symbols  []string                                // symbols with at least one usable bar, caller order
	skipped  []string                                // requested symbols without usable bars
	bars     map[string]map[string]contracts.PriceBar // symbol → date key → bar
	dates    []string                                // sorted union of date keys
	decision map[string]time.Time                    // date key → 00:00 of that date
}

func newBarBook(symbols []string, series map[string]contracts.PriceSeries) *barBook {
	book := &barBook{
		bars:     make(map[string]map[string]contracts.PriceBar),
		decision: make(map[string]time.Time),
	}

	seen := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		byDate := make(map[string]contracts.PriceBar)
		for _, bar := range series[symbol] {
			// non-positive or NaN closes count as missing
			if !(bar.Close > 0) || math.IsInf(bar.Close, 0) {
				continue
			}
			key := contracts.DateKey(bar.Date)
			byDate[key] = bar
			if _, ok := book.decision[key]; !ok {
				y, m, d := bar.Date.Date()
				book.decision[key] = time.Date(y, m, d, 0, 0, 0, 0, bar.Date.Location())
			}
		}

		if len(byDate) == 0 {
			book.skipped = append(book.skipped, symbol)
			continue
		}
		book.symbols = append(book.symbols, symbol)
		book.bars[symbol] = byDate
	}

	book.dates = make([]string, 0, len(book.decision))
	for key := range book.decision {
		book.dates = append(book.dates, key)
	}
	sort.Strings(book.dates)

	return book
}
