package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"

	"bitcoin-ai-trader/indicator"
	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/types"
)

const (
	priceCacheTTL = 30 * time.Second
	depthLimit    = 5
	tradesLimit   = 10
	maxAttempts   = 3
	httpTimeout   = 15 * time.Second
)

// Collector pulls market data from Binance spot REST and turns it into
// snapshots the signal pipeline consumes. Failed calls fall back to the
// last known value so one flaky endpoint does not sink a whole cycle.
type Collector struct {
	client      *binance.Client
	calculator  *indicator.Calculator
	interval    string
	candleLimit int

	mu          sync.Mutex
	cachedPrice float64
	cachedAt    time.Time
	lastTicker  types.TickerStats
	lastBook    types.OrderBookTop
	lastCandles []types.Candle
}

// NewCollector builds a collector for public market data. Empty API
// credentials are fine, the endpoints used here are unauthenticated.
func NewCollector(apiKey, secretKey, interval string, candleLimit, rsiPeriod int) *Collector {
	if candleLimit < indicator.MinCandles {
		candleLimit = 100
	}
	client := binance.NewClient(apiKey, secretKey)
	client.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &Collector{
		client:      client,
		calculator:  indicator.NewCalculator(rsiPeriod),
		interval:    interval,
		candleLimit: candleLimit,
	}
}

// retry runs fn with exponential backoff, up to maxAttempts tries.
func retry(ctx context.Context, what string, fn func() error) error {
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		d := b.Duration()
		logger.Warn(fmt.Sprintf("%s failed (attempt %d/%d), retrying in %s: %v",
			what, attempt, maxAttempts, d, err))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Price returns the current price, served from a short-lived cache to
// keep intra-cycle reads consistent.
func (c *Collector) Price(ctx context.Context, symbol string) (float64, error) {
	c.mu.Lock()
	if c.cachedPrice > 0 && time.Since(c.cachedAt) < priceCacheTTL {
		price := c.cachedPrice
		c.mu.Unlock()
		return price, nil
	}
	c.mu.Unlock()

	var price float64
	err := retry(ctx, "fetch price", func() error {
		prices, err := c.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		if len(prices) == 0 {
			return fmt.Errorf("no price for %s", symbol)
		}
		p, err := strconv.ParseFloat(prices[0].Price, 64)
		if err != nil {
			return fmt.Errorf("parse price %q: %w", prices[0].Price, err)
		}
		price = p
		return nil
	})
	if err != nil {
		c.mu.Lock()
		cached := c.cachedPrice
		c.mu.Unlock()
		if cached > 0 {
			logger.Warn(fmt.Sprintf("using stale price %.2f for %s: %v", cached, symbol, err))
			return cached, nil
		}
		return 0, err
	}

	c.mu.Lock()
	c.cachedPrice = price
	c.cachedAt = time.Now()
	c.mu.Unlock()
	return price, nil
}

// Ticker returns the rolling 24h statistics.
func (c *Collector) Ticker(ctx context.Context, symbol string) (types.TickerStats, error) {
	var stats types.TickerStats
	err := retry(ctx, "fetch 24h ticker", func() error {
		res, err := c.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		if len(res) == 0 {
			return fmt.Errorf("no ticker for %s", symbol)
		}
		t := res[0]
		stats = types.TickerStats{
			High24h:          parseF(t.HighPrice),
			Low24h:           parseF(t.LowPrice),
			Volume24h:        parseF(t.Volume),
			QuoteVolume24h:   parseF(t.QuoteVolume),
			PriceChange24h:   parseF(t.PriceChange),
			PriceChangePct24: parseF(t.PriceChangePercent),
		}
		return nil
	})
	if err != nil {
		c.mu.Lock()
		last := c.lastTicker
		c.mu.Unlock()
		if last.High24h > 0 {
			return last, nil
		}
		return types.TickerStats{}, err
	}

	c.mu.Lock()
	c.lastTicker = stats
	c.mu.Unlock()
	return stats, nil
}

// OrderBook returns the top of book.
func (c *Collector) OrderBook(ctx context.Context, symbol string) (types.OrderBookTop, error) {
	var book types.OrderBookTop
	err := retry(ctx, "fetch order book", func() error {
		depth, err := c.client.NewDepthService().Symbol(symbol).Limit(depthLimit).Do(ctx)
		if err != nil {
			return err
		}
		if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
			return fmt.Errorf("empty order book for %s", symbol)
		}
		book = types.OrderBookTop{
			BidPrice: parseF(depth.Bids[0].Price),
			BidQty:   parseF(depth.Bids[0].Quantity),
			AskPrice: parseF(depth.Asks[0].Price),
			AskQty:   parseF(depth.Asks[0].Quantity),
		}
		return nil
	})
	if err != nil {
		c.mu.Lock()
		last := c.lastBook
		c.mu.Unlock()
		if last.BidPrice > 0 {
			return last, nil
		}
		return types.OrderBookTop{}, err
	}

	c.mu.Lock()
	c.lastBook = book
	c.mu.Unlock()
	return book, nil
}

// RecentTrades returns the latest public trades.
func (c *Collector) RecentTrades(ctx context.Context, symbol string) ([]types.RecentTrade, error) {
	var trades []types.RecentTrade
	err := retry(ctx, "fetch recent trades", func() error {
		res, err := c.client.NewRecentTradesService().Symbol(symbol).Limit(tradesLimit).Do(ctx)
		if err != nil {
			return err
		}
		trades = trades[:0]
		for _, t := range res {
			trades = append(trades, types.RecentTrade{
				Price:        parseF(t.Price),
				Quantity:     parseF(t.Quantity),
				Time:         time.UnixMilli(t.Time),
				IsBuyerMaker: t.IsBuyerMaker,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// Candles returns up to candleLimit klines, oldest first.
func (c *Collector) Candles(ctx context.Context, symbol string) ([]types.Candle, error) {
	var candles []types.Candle
	err := retry(ctx, "fetch candles", func() error {
		klines, err := c.client.NewKlinesService().
			Symbol(symbol).
			Interval(c.interval).
			Limit(c.candleLimit).
			Do(ctx)
		if err != nil {
			return err
		}
		candles = make([]types.Candle, 0, len(klines))
		for _, k := range klines {
			candles = append(candles, types.Candle{
				OpenTime:  time.UnixMilli(k.OpenTime),
				Open:      parseF(k.Open),
				High:      parseF(k.High),
				Low:       parseF(k.Low),
				Close:     parseF(k.Close),
				Volume:    parseF(k.Volume),
				CloseTime: time.UnixMilli(k.CloseTime),
			})
		}
		return nil
	})
	if err != nil {
		c.mu.Lock()
		last := c.lastCandles
		c.mu.Unlock()
		if len(last) > 0 {
			logger.Warn(fmt.Sprintf("using %d cached candles for %s: %v", len(last), symbol, err))
			return last, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.lastCandles = candles
	c.mu.Unlock()
	return candles, nil
}

// Snapshot gathers all market data for one analysis cycle. The
// independent endpoints are fetched concurrently and joined before the
// indicator pass runs over the candles.
func (c *Collector) Snapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error) {
	price, err := c.Price(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", symbol, err)
	}

	var (
		wg      sync.WaitGroup
		ticker  types.TickerStats
		book    types.OrderBookTop
		candles []types.Candle
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		t, err := c.Ticker(ctx, symbol)
		if err != nil {
			logger.Warn(fmt.Sprintf("ticker unavailable for %s: %v", symbol, err))
			return
		}
		ticker = t
	}()
	go func() {
		defer wg.Done()
		b, err := c.OrderBook(ctx, symbol)
		if err != nil {
			logger.Warn(fmt.Sprintf("order book unavailable for %s: %v", symbol, err))
			return
		}
		book = b
	}()
	go func() {
		defer wg.Done()
		cs, err := c.Candles(ctx, symbol)
		if err != nil {
			logger.Warn(fmt.Sprintf("candles unavailable for %s: %v", symbol, err))
			return
		}
		candles = cs
	}()
	wg.Wait()

	indicators := c.calculator.Snapshot(candles)
	if len(candles) == 0 {
		indicators = indicator.DefaultSnapshot(price)
	}

	snap := &types.MarketSnapshot{
		Symbol:     symbol,
		Timestamp:  time.Now(),
		Price:      price,
		Ticker:     ticker,
		Book:       book,
		Candles:    len(candles),
		Indicators: indicators,
		AvgVolume:  indicators.VolumeSMA,
	}
	return snap, nil
}

func parseF(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
