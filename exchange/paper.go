package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/types"
)

const maxHistory = 1000

// PaperExchange simulates order execution against virtual balances.
// All balance math runs on decimals so repeated partial fills do not
// accumulate float drift.
type PaperExchange struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	trades   []types.Trade
	nextID   int
}

// NewPaperExchange seeds the demo account with initialBalance units of
// the quote currency (USDT).
func NewPaperExchange(initialBalance float64) *PaperExchange {
	if initialBalance <= 0 {
		initialBalance = 10000
	}
	return &PaperExchange{
		balances: map[string]decimal.Decimal{
			"USDT": decimal.NewFromFloat(initialBalance),
		},
		nextID: 1,
	}
}

func (p *PaperExchange) Balance(ctx context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]float64, len(p.balances))
	for cur, amt := range p.balances {
		f, _ := amt.Float64()
		out[cur] = f
	}
	return out, nil
}

// PlaceBuyOrder debits quote and credits base atomically. The check and
// the move happen under the same lock, so a rejected order leaves the
// balances untouched.
func (p *PaperExchange) PlaceBuyOrder(ctx context.Context, symbol string, amount, price float64) (*types.Trade, error) {
	if amount <= 0 || price <= 0 {
		return nil, fmt.Errorf("invalid order: amount=%.8f price=%.2f", amount, price)
	}
	base, quote := splitSymbol(symbol)

	p.mu.Lock()
	defer p.mu.Unlock()

	amt := decimal.NewFromFloat(amount)
	cost := amt.Mul(decimal.NewFromFloat(price))
	if p.balances[quote].LessThan(cost) {
		return nil, fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientFunds,
			cost.StringFixed(2), quote, p.balances[quote].StringFixed(2))
	}

	p.balances[quote] = p.balances[quote].Sub(cost)
	p.balances[base] = p.balances[base].Add(amt)

	trade := p.record(symbol, types.SideBuy, amount, price, cost)
	logger.Info(fmt.Sprintf("Paper BUY %s: %.6f @ %.2f (cost %.2f %s)",
		symbol, amount, price, trade.Cost, quote))
	return trade, nil
}

// PlaceSellOrder credits quote and debits base atomically.
func (p *PaperExchange) PlaceSellOrder(ctx context.Context, symbol string, amount, price float64) (*types.Trade, error) {
	if amount <= 0 || price <= 0 {
		return nil, fmt.Errorf("invalid order: amount=%.8f price=%.2f", amount, price)
	}
	base, quote := splitSymbol(symbol)

	p.mu.Lock()
	defer p.mu.Unlock()

	amt := decimal.NewFromFloat(amount)
	if p.balances[base].LessThan(amt) {
		return nil, fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientHoldings,
			amt.StringFixed(8), base, p.balances[base].StringFixed(8))
	}

	proceeds := amt.Mul(decimal.NewFromFloat(price))
	p.balances[base] = p.balances[base].Sub(amt)
	p.balances[quote] = p.balances[quote].Add(proceeds)

	trade := p.record(symbol, types.SideSell, amount, price, proceeds)
	logger.Info(fmt.Sprintf("Paper SELL %s: %.6f @ %.2f (proceeds %.2f %s)",
		symbol, amount, price, trade.Cost, quote))
	return trade, nil
}

// record must be called with the mutex held.
func (p *PaperExchange) record(symbol, side string, amount, price float64, cost decimal.Decimal) *types.Trade {
	costF, _ := cost.Float64()
	trade := types.Trade{
		ID:        fmt.Sprintf("demo_%d", p.nextID),
		Symbol:    symbol,
		Side:      side,
		Amount:    amount,
		Price:     price,
		Cost:      costF,
		Timestamp: time.Now(),
		Status:    "filled",
	}
	p.nextID++
	p.trades = append(p.trades, trade)
	if len(p.trades) > maxHistory {
		p.trades = p.trades[len(p.trades)-maxHistory:]
	}
	return &trade
}

// Positions derives the net open position per symbol from the trade
// log. Entry price is the volume-weighted average of the buys.
func (p *PaperExchange) Positions(ctx context.Context, currentPrice float64) ([]types.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	type acc struct {
		net     decimal.Decimal
		buyAmt  decimal.Decimal
		buyCost decimal.Decimal
	}
	bySymbol := make(map[string]*acc)
	var order []string

	for _, t := range p.trades {
		a, ok := bySymbol[t.Symbol]
		if !ok {
			a = &acc{}
			bySymbol[t.Symbol] = a
			order = append(order, t.Symbol)
		}
		amt := decimal.NewFromFloat(t.Amount)
		if t.Side == types.SideBuy {
			a.net = a.net.Add(amt)
			a.buyAmt = a.buyAmt.Add(amt)
			a.buyCost = a.buyCost.Add(decimal.NewFromFloat(t.Cost))
		} else {
			a.net = a.net.Sub(amt)
		}
	}

	var positions []types.Position
	for _, sym := range order {
		a := bySymbol[sym]
		if a.net.IsZero() || a.net.IsNegative() {
			continue
		}
		entry := 0.0
		if a.buyAmt.IsPositive() {
			entry, _ = a.buyCost.Div(a.buyAmt).Float64()
		}
		netF, _ := a.net.Float64()
		positions = append(positions, types.Position{
			Symbol:        sym,
			Side:          "long",
			Amount:        netF,
			EntryPrice:    entry,
			CurrentPrice:  currentPrice,
			UnrealizedPnL: (currentPrice - entry) * netF,
		})
	}
	return positions, nil
}

func (p *PaperExchange) OrderHistory(limit int) []types.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limit <= 0 || limit > len(p.trades) {
		limit = len(p.trades)
	}
	out := make([]types.Trade, limit)
	copy(out, p.trades[len(p.trades)-limit:])
	return out
}

func (p *PaperExchange) TradesToday(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	y, m, d := now.Date()
	count := 0
	for _, t := range p.trades {
		ty, tm, td := t.Timestamp.Date()
		if ty == y && tm == m && td == d {
			count++
		}
	}
	return count
}

// splitSymbol maps a concatenated pair like BTCUSDT onto its base and
// quote currencies. Only USDT-quoted pairs are traded.
func splitSymbol(symbol string) (base, quote string) {
	symbol = strings.ToUpper(symbol)
	if strings.HasSuffix(symbol, "USDT") {
		return strings.TrimSuffix(symbol, "USDT"), "USDT"
	}
	return symbol, "USDT"
}
