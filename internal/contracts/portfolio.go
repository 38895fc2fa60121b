package contracts

import "time"

// Position is an open holding; at most one per symbol
type Position struct {
	Symbol     string    `json:"symbol"`
	Shares     int64     `json:"shares"`
	EntryPrice float64   `json:"entry_price"`
	EntryDate  time.Time `json:"entry_date"`
}

// MarketValue returns shares × price
func (p Position) MarketValue(price float64) float64 {
	return float64(p.Shares) * price
}

// UnrealizedReturn returns (price - entry) / entry
func (p Position) UnrealizedReturn(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// TradeRecord is an append-only trade log entry
type TradeRecord struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Shares     int64     `json:"shares"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"`
}

// Amount returns shares × price
func (t TradeRecord) Amount() float64 {
	return float64(t.Shares) * t.Price
}

// EquityPoint is one processed date on the equity curve
type EquityPoint struct {
	Date             time.Time `json:"date"`
	Equity           float64   `json:"equity"`
	Return           float64   `json:"return"`            // period return vs previous point
	UnrealizedReturn float64   `json:"unrealized_return"` // diagnostic sum over open positions
}
