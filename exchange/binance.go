package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/types"
)

// BinanceExchange executes real spot orders through the Binance REST
// API. It keeps a local copy of its own fills so order history and the
// daily trade count survive without extra API round trips.
type BinanceExchange struct {
	client *binance.Client
	symbol string
	base   string

	mu     sync.Mutex
	trades []types.Trade
}

// NewBinanceExchange connects to Binance spot for one trading pair.
// With testnet set the client talks to the public testnet instead of
// production.
func NewBinanceExchange(apiKey, secretKey, symbol, baseCurrency string, testnet bool) (*BinanceExchange, error) {
	client := binance.NewClient(apiKey, secretKey)
	client.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	if testnet {
		client.SetApiEndpoint("https://testnet.binance.vision")
		logger.Warn("Binance client pointed at spot testnet")
	}
	return &BinanceExchange{client: client, symbol: symbol, base: baseCurrency}, nil
}

func (b *BinanceExchange) Balance(ctx context.Context) (map[string]float64, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}

	out := make(map[string]float64)
	for _, bal := range account.Balances {
		free, err := strconv.ParseFloat(bal.Free, 64)
		if err != nil || free == 0 {
			continue
		}
		out[bal.Asset] = free
	}
	return out, nil
}

func (b *BinanceExchange) PlaceBuyOrder(ctx context.Context, symbol string, amount, price float64) (*types.Trade, error) {
	return b.placeOrder(ctx, symbol, binance.SideTypeBuy, types.SideBuy, amount, price)
}

func (b *BinanceExchange) PlaceSellOrder(ctx context.Context, symbol string, amount, price float64) (*types.Trade, error) {
	return b.placeOrder(ctx, symbol, binance.SideTypeSell, types.SideSell, amount, price)
}

func (b *BinanceExchange) placeOrder(ctx context.Context, symbol string, side binance.SideType, localSide string, amount, price float64) (*types.Trade, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid order amount %.8f", amount)
	}

	order, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(amount, 'f', 6, 64)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("place %s order: %w", localSide, err)
	}

	fillPrice, fillQty := fillStats(order)
	if fillPrice == 0 {
		fillPrice = price
	}
	if fillQty == 0 {
		fillQty = amount
	}

	trade := types.Trade{
		ID:        strconv.FormatInt(order.OrderID, 10),
		Symbol:    symbol,
		Side:      localSide,
		Amount:    fillQty,
		Price:     fillPrice,
		Cost:      fillQty * fillPrice,
		Timestamp: time.UnixMilli(order.TransactTime),
		Status:    string(order.Status),
	}

	b.mu.Lock()
	b.trades = append(b.trades, trade)
	if len(b.trades) > maxHistory {
		b.trades = b.trades[len(b.trades)-maxHistory:]
	}
	b.mu.Unlock()

	logger.Info(fmt.Sprintf("Binance %s %s: %.6f @ %.2f (order %d, %s)",
		localSide, symbol, fillQty, fillPrice, order.OrderID, order.Status))
	return &trade, nil
}

// fillStats averages the execution price over the order's fills.
func fillStats(order *binance.CreateOrderResponse) (price, qty float64) {
	var totalCost, totalQty float64
	for _, f := range order.Fills {
		p, err1 := strconv.ParseFloat(f.Price, 64)
		q, err2 := strconv.ParseFloat(f.Quantity, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		totalCost += p * q
		totalQty += q
	}
	if totalQty == 0 {
		return 0, 0
	}
	return totalCost / totalQty, totalQty
}

// Positions reports the spot holdings of the base asset as a single
// long position. Spot accounts have no short side.
func (b *BinanceExchange) Positions(ctx context.Context, currentPrice float64) ([]types.Position, error) {
	balances, err := b.Balance(ctx)
	if err != nil {
		return nil, err
	}

	amount := balances[b.base]
	if amount <= 0 {
		return nil, nil
	}

	entry := b.averageEntry(b.symbol)
	if entry == 0 {
		entry = currentPrice
	}
	return []types.Position{{
		Symbol:        b.symbol,
		Side:          "long",
		Amount:        amount,
		EntryPrice:    entry,
		CurrentPrice:  currentPrice,
		UnrealizedPnL: (currentPrice - entry) * amount,
	}}, nil
}

func (b *BinanceExchange) averageEntry(symbol string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var cost, qty float64
	for _, t := range b.trades {
		if t.Symbol == symbol && t.Side == types.SideBuy {
			cost += t.Cost
			qty += t.Amount
		}
	}
	if qty == 0 {
		return 0
	}
	return cost / qty
}

func (b *BinanceExchange) OrderHistory(limit int) []types.Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || limit > len(b.trades) {
		limit = len(b.trades)
	}
	out := make([]types.Trade, limit)
	copy(out, b.trades[len(b.trades)-limit:])
	return out
}

func (b *BinanceExchange) TradesToday(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	y, m, d := now.Date()
	count := 0
	for _, t := range b.trades {
		ty, tm, td := t.Timestamp.Date()
		if ty == y && tm == m && td == d {
			count++
		}
	}
	return count
}
