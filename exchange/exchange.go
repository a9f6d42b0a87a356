package exchange

import (
	"context"
	"errors"
	"time"

	"bitcoin-ai-trader/types"
)

// Bookkeeping invariant violations. These are the only failures allowed
// to abort a trading cycle's trade attempt.
var (
	ErrInsufficientFunds    = errors.New("insufficient quote balance")
	ErrInsufficientHoldings = errors.New("insufficient base holdings")
)

// Exchange is the order-execution collaborator. The paper and live
// implementations satisfy the identical contract so the risk gate and
// signal pipeline stay implementation-agnostic.
type Exchange interface {
	// Balance returns the free balance per currency.
	Balance(ctx context.Context) (map[string]float64, error)

	// PlaceBuyOrder buys amount of the base currency at price. A zero
	// price means market order where supported.
	PlaceBuyOrder(ctx context.Context, symbol string, amount, price float64) (*types.Trade, error)

	// PlaceSellOrder sells amount of the base currency at price.
	PlaceSellOrder(ctx context.Context, symbol string, amount, price float64) (*types.Trade, error)

	// Positions returns the open positions, valued at currentPrice.
	Positions(ctx context.Context, currentPrice float64) ([]types.Position, error)

	// OrderHistory returns up to limit most recent trades, oldest first.
	OrderHistory(limit int) []types.Trade

	// TradesToday counts trades whose timestamps fall on the same
	// calendar day as now. The risk gate's daily cap reads this.
	TradesToday(now time.Time) int
}
