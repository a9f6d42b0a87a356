package indicator

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"bitcoin-ai-trader/types"
)

// MinCandles is the smallest candle window the calculator will analyze.
// Anything shorter produces the neutral snapshot.
const MinCandles = 20

// srLookback is how many trailing candles the support/resistance scan
// considers.
const srLookback = 50

// Calculator derives an IndicatorSnapshot from a candle window.
type Calculator struct {
	rsiPeriod   int
	bollPeriod  int
	bollStdDev  float64
	stochPeriod int
}

// NewCalculator creates a calculator with the given RSI period. The
// remaining periods use the conventional defaults (Bollinger 20/2,
// stochastic 14).
func NewCalculator(rsiPeriod int) *Calculator {
	if rsiPeriod <= 0 {
		rsiPeriod = 14
	}
	return &Calculator{
		rsiPeriod:   rsiPeriod,
		bollPeriod:  20,
		bollStdDev:  2.0,
		stochPeriod: 14,
	}
}

// Snapshot computes all indicators from the candle window. Windows
// shorter than MinCandles return DefaultSnapshot for the latest close:
// insufficient data is resolved with neutral values, never an error.
func (c *Calculator) Snapshot(candles []types.Candle) types.IndicatorSnapshot {
	price := 0.0
	if len(candles) > 0 {
		price = candles[len(candles)-1].Close
	}
	if len(candles) < MinCandles {
		return DefaultSnapshot(price)
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i] = candle.Close
		highs[i] = candle.High
		lows[i] = candle.Low
		volumes[i] = candle.Volume
	}

	support, resistance := c.SupportResistance(candles)

	return types.IndicatorSnapshot{
		RSI:  RSI(closes, c.rsiPeriod),
		MACD: MACD(closes),
		MovingAverages: types.MovingAverages{
			SMA20: SMA(closes, 20),
			SMA50: SMA(closes, 50),
			EMA12: EMA(closes, 12),
			EMA26: EMA(closes, 26),
		},
		Bollinger:        Bollinger(closes, c.bollPeriod, c.bollStdDev),
		Stochastic:       Stoch(highs, lows, closes, c.stochPeriod),
		SupportLevels:    support,
		ResistanceLevels: resistance,
		VolumeSMA:        SMA(volumes, 20),
	}
}

// DefaultSnapshot is the documented neutral snapshot used whenever the
// candle window is too short: RSI 50, zero MACD, all averages and
// Bollinger bands collapsed to the current price, stochastic at 50 and
// no support/resistance levels.
func DefaultSnapshot(price float64) types.IndicatorSnapshot {
	return types.IndicatorSnapshot{
		RSI:  50.0,
		MACD: types.MACDValues{},
		MovingAverages: types.MovingAverages{
			SMA20: price,
			SMA50: price,
			EMA12: price,
			EMA26: price,
		},
		Bollinger: types.BollingerBands{
			Upper:  price,
			Middle: price,
			Lower:  price,
		},
		Stochastic:       types.Stochastic{K: 50, D: 50},
		SupportLevels:    []float64{},
		ResistanceLevels: []float64{},
	}
}

// RSI computes the Relative Strength Index over the last period deltas.
// Returns the neutral 50 when there are fewer than period+1 prices and
// 100 when there were no losses in the window.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50.0
	}

	sumGain := 0.0
	sumLoss := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			sumGain += change
		} else {
			sumLoss += -change
		}
	}

	avgGain := sumGain / float64(period)
	avgLoss := sumLoss / float64(period)
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// SMA computes the simple moving average over the last period prices,
// falling back to the whole series when it is shorter than period.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return stat.Mean(prices, nil)
	}
	return stat.Mean(prices[len(prices)-period:], nil)
}

// EMA computes the exponential moving average, seeded with the SMA of
// the first period values. Series shorter than period fall back to a
// plain SMA.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return SMA(prices, len(prices))
	}

	multiplier := 2.0 / (float64(period) + 1.0)
	ema := stat.Mean(prices[:period], nil)
	for _, price := range prices[period:] {
		ema = (price * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// MACD computes the MACD line as EMA(12)-EMA(26). The signal line is a
// simplified proxy (0.9x the MACD line) because no MACD history is
// retained between cycles; this is a documented approximation, not a
// true 9-period EMA of MACD.
func MACD(prices []float64) types.MACDValues {
	if len(prices) < 26 {
		return types.MACDValues{}
	}

	macdLine := EMA(prices, 12) - EMA(prices, 26)
	signalLine := macdLine * 0.9
	return types.MACDValues{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}

// Bollinger computes the Bollinger Bands with a population standard
// deviation over the window. With insufficient data all three bands
// collapse to the current price.
func Bollinger(prices []float64, period int, stdDevs float64) types.BollingerBands {
	if len(prices) < period {
		price := 0.0
		if len(prices) > 0 {
			price = prices[len(prices)-1]
		}
		return types.BollingerBands{Upper: price, Middle: price, Lower: price}
	}

	window := prices[len(prices)-period:]
	middle := stat.Mean(window, nil)
	sigma := stat.PopStdDev(window, nil)
	return types.BollingerBands{
		Upper:  middle + stdDevs*sigma,
		Middle: middle,
		Lower:  middle - stdDevs*sigma,
	}
}

// Stoch computes the stochastic oscillator %K over the window, with 50
// when the high-low range is zero. %D is a simplified 0.9x %K proxy,
// same caveat as the MACD signal line.
func Stoch(highs, lows, closes []float64, period int) types.Stochastic {
	if len(closes) < period || len(highs) < period || len(lows) < period {
		return types.Stochastic{K: 50, D: 50}
	}

	highestHigh := highs[len(highs)-period]
	lowestLow := lows[len(lows)-period]
	for i := len(highs) - period + 1; i < len(highs); i++ {
		if highs[i] > highestHigh {
			highestHigh = highs[i]
		}
		if lows[i] < lowestLow {
			lowestLow = lows[i]
		}
	}

	k := 50.0
	if highestHigh != lowestLow {
		k = 100.0 * (closes[len(closes)-1] - lowestLow) / (highestHigh - lowestLow)
	}
	return types.Stochastic{K: k, D: k * 0.9}
}

// SupportResistance scans the last srLookback candles for pivot points:
// a low strictly below its two neighbors on each side is a support, the
// symmetric rule on highs gives a resistance. Levels are deduplicated,
// sorted ascending and capped at the 5 highest distinct values.
func (c *Calculator) SupportResistance(candles []types.Candle) (support, resistance []float64) {
	window := candles
	if len(window) > srLookback {
		window = window[len(window)-srLookback:]
	}

	var supports, resistances []float64
	for i := 2; i < len(window)-2; i++ {
		low := window[i].Low
		if low < window[i-1].Low && low < window[i-2].Low &&
			low < window[i+1].Low && low < window[i+2].Low {
			supports = append(supports, low)
		}
		high := window[i].High
		if high > window[i-1].High && high > window[i-2].High &&
			high > window[i+1].High && high > window[i+2].High {
			resistances = append(resistances, high)
		}
	}

	return dedupeSortCap(supports, 5), dedupeSortCap(resistances, 5)
}

func dedupeSortCap(levels []float64, max int) []float64 {
	seen := make(map[float64]bool, len(levels))
	out := make([]float64, 0, len(levels))
	for _, level := range levels {
		if !seen[level] {
			seen[level] = true
			out = append(out, level)
		}
	}
	sort.Float64s(out)
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}
