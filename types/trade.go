package types

import "time"

// Constants for trade sides
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade is an immutable record of a filled order. Cost is always
// Amount*Price at fill time.
type Trade struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"` // buy, sell
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Position represents an open holding in the base currency.
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // long
	Amount        float64 `json:"amount"`
	EntryPrice    float64 `json:"entry_price"` // weighted average of buy trades
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}
