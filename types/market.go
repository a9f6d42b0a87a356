package types

import "time"

// Candle represents a single OHLCV candlestick. Candle sequences are
// ordered oldest-first and immutable once collected.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// MACDValues holds the MACD line, its signal line and the histogram.
type MACDValues struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MovingAverages holds the moving averages used by the signal scorer.
type MovingAverages struct {
	SMA20 float64 `json:"sma_20"`
	SMA50 float64 `json:"sma_50"`
	EMA12 float64 `json:"ema_12"`
	EMA26 float64 `json:"ema_26"`
}

// BollingerBands holds the three Bollinger band levels.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Stochastic holds the stochastic oscillator values.
type Stochastic struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// IndicatorSnapshot is the full set of technical indicators derived from
// one candle window. Windows shorter than 20 candles produce the neutral
// defaults from indicator.DefaultSnapshot.
type IndicatorSnapshot struct {
	RSI              float64        `json:"rsi"`
	MACD             MACDValues     `json:"macd"`
	MovingAverages   MovingAverages `json:"moving_averages"`
	Bollinger        BollingerBands `json:"bollinger_bands"`
	Stochastic       Stochastic     `json:"stochastic"`
	SupportLevels    []float64      `json:"support_levels"`    // ascending, at most 5
	ResistanceLevels []float64      `json:"resistance_levels"` // ascending, at most 5
	VolumeSMA        float64        `json:"volume_sma"`
}

// OrderBookTop represents the top of the order book.
type OrderBookTop struct {
	BidPrice float64 `json:"bid_price"`
	BidQty   float64 `json:"bid_qty"`
	AskPrice float64 `json:"ask_price"`
	AskQty   float64 `json:"ask_qty"`
}

// Spread returns the bid-ask spread, 0 when either side is missing.
func (o OrderBookTop) Spread() float64 {
	if o.BidPrice <= 0 || o.AskPrice <= 0 {
		return 0
	}
	return o.AskPrice - o.BidPrice
}

// TickerStats holds the 24h rolling ticker statistics for a symbol.
type TickerStats struct {
	High24h          float64 `json:"high_24h"`
	Low24h           float64 `json:"low_24h"`
	Volume24h        float64 `json:"volume_24h"`
	QuoteVolume24h   float64 `json:"quote_volume_24h"`
	PriceChange24h   float64 `json:"price_change_24h"`
	PriceChangePct24 float64 `json:"price_change_percent_24h"`
}

// RecentTrade is a single public market trade.
type RecentTrade struct {
	Price        float64   `json:"price"`
	Quantity     float64   `json:"qty"`
	Time         time.Time `json:"time"`
	IsBuyerMaker bool      `json:"is_buyer_maker"`
}

// MarketSnapshot bundles everything one trading cycle needs: current
// price, 24h statistics, top of book, average volume and the indicator
// snapshot computed from the latest candle window.
type MarketSnapshot struct {
	Symbol     string            `json:"symbol"`
	Timestamp  time.Time         `json:"timestamp"`
	Price      float64           `json:"price"`
	Ticker     TickerStats       `json:"ticker"`
	Book       OrderBookTop      `json:"order_book"`
	AvgVolume  float64           `json:"avg_volume"`
	Indicators IndicatorSnapshot `json:"indicators"`
	Candles    int               `json:"candles"` // size of the window the indicators were derived from
}
