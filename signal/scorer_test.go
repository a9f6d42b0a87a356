package signal

import (
	"math"
	"testing"

	"bitcoin-ai-trader/indicator"
	"bitcoin-ai-trader/types"
)

func neutralSnapshot(price float64) types.MarketSnapshot {
	return types.MarketSnapshot{
		Symbol: "BTCUSDT",
		Price:  price,
		Indicators: types.IndicatorSnapshot{
			RSI: 50,
			MovingAverages: types.MovingAverages{
				SMA20: price, SMA50: price, EMA12: price, EMA26: price,
			},
			Bollinger:  types.BollingerBands{Upper: price, Middle: price, Lower: price},
			Stochastic: types.Stochastic{K: 50, D: 50},
		},
	}
}

func TestScoreNeutralMarket(t *testing.T) {
	scorer := NewScorer(30, 70)
	opinion := scorer.Score(neutralSnapshot(50000))

	if opinion.Action != types.ActionHold {
		t.Errorf("Action = %v, want HOLD in neutral market", opinion.Action)
	}
	if opinion.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 with every indicator neutral", opinion.Confidence)
	}
	if opinion.Reasoning != "No strong technical signals" {
		t.Errorf("Reasoning = %q, want the no-signal message", opinion.Reasoning)
	}
	if len(opinion.KeyFactors) != 0 {
		t.Errorf("KeyFactors = %v, want empty", opinion.KeyFactors)
	}
}

func TestScoreBullishAlignment(t *testing.T) {
	price := 50000.0
	snap := neutralSnapshot(price)
	snap.Indicators.RSI = 25
	snap.Indicators.MACD = types.MACDValues{MACD: 120, Signal: 108, Histogram: 12}
	snap.Indicators.MovingAverages = types.MovingAverages{
		SMA20: 49000, SMA50: 48000, EMA12: 49500, EMA26: 49000,
	}
	snap.Indicators.SupportLevels = []float64{49500}

	scorer := NewScorer(30, 70)
	opinion := scorer.Score(snap)

	if opinion.Action != types.ActionBuy {
		t.Errorf("Action = %v, want BUY with all indicators bullish", opinion.Action)
	}
	if opinion.Confidence < 0.9 {
		t.Errorf("Confidence = %v, want near 1 with unanimous BUY votes", opinion.Confidence)
	}
	if len(opinion.KeyFactors) != 4 {
		t.Errorf("KeyFactors = %v, want all four indicators voting", opinion.KeyFactors)
	}
	if opinion.StopLoss >= price || opinion.TakeProfit <= price {
		t.Errorf("levels stop=%v target=%v, want stop below and target above %v",
			opinion.StopLoss, opinion.TakeProfit, price)
	}
}

func TestScoreBearishAlignment(t *testing.T) {
	price := 50000.0
	snap := neutralSnapshot(price)
	snap.Indicators.RSI = 78
	snap.Indicators.MACD = types.MACDValues{MACD: -120, Signal: -108, Histogram: -12}
	snap.Indicators.MovingAverages = types.MovingAverages{
		SMA20: 51000, SMA50: 52000, EMA12: 50500, EMA26: 51000,
	}
	snap.Indicators.ResistanceLevels = []float64{50500}

	scorer := NewScorer(30, 70)
	opinion := scorer.Score(snap)

	if opinion.Action != types.ActionSell {
		t.Errorf("Action = %v, want SELL with all indicators bearish", opinion.Action)
	}
	if opinion.Confidence < 0.9 {
		t.Errorf("Confidence = %v, want near 1 with unanimous SELL votes", opinion.Confidence)
	}
}

func TestVoteRSI(t *testing.T) {
	scorer := NewScorer(30, 70)

	tests := []struct {
		rsi        float64
		wantAction string
	}{
		{15, types.ActionBuy},
		{30, types.ActionBuy},
		{35, types.ActionHold},
		{50, types.ActionHold},
		{69.9, types.ActionHold},
		{70, types.ActionSell},
		{85, types.ActionSell},
	}
	for _, tt := range tests {
		if got := scorer.voteRSI(tt.rsi); got.action != tt.wantAction {
			t.Errorf("voteRSI(%v) = %v, want %v", tt.rsi, got.action, tt.wantAction)
		}
	}
}

func TestVoteSupportResistance(t *testing.T) {
	tests := []struct {
		name        string
		price       float64
		supports    []float64
		resistances []float64
		wantAction  string
	}{
		{"no levels", 50000, nil, nil, types.ActionHold},
		{"near support", 50000, []float64{49500}, nil, types.ActionBuy},
		{"far support", 50000, []float64{45000}, nil, types.ActionHold},
		{"near resistance", 50000, nil, []float64{50500}, types.ActionSell},
		{"far resistance", 50000, nil, []float64{55000}, types.ActionHold},
		{"support wins when closer rule fires first", 50000, []float64{49800}, []float64{50200}, types.ActionBuy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := voteSupportResistance(tt.price, tt.supports, tt.resistances)
			if got.action != tt.wantAction {
				t.Errorf("voteSupportResistance() = %v, want %v", got.action, tt.wantAction)
			}
		})
	}
}

func TestVolumeConfirmationOnlyAffectsReasoning(t *testing.T) {
	snap := neutralSnapshot(50000)
	snap.AvgVolume = 100
	snap.Ticker.Volume24h = 200

	scorer := NewScorer(30, 70)
	opinion := scorer.Score(snap)

	if opinion.Action != types.ActionHold {
		t.Errorf("Action = %v, volume alone must not move the action", opinion.Action)
	}
	if opinion.Confidence != 0 {
		t.Errorf("Confidence = %v, volume alone must not add confidence", opinion.Confidence)
	}
	if opinion.Reasoning == "No strong technical signals" {
		t.Error("Reasoning should mention the high volume confirmation")
	}
}

func TestPriceLevels(t *testing.T) {
	price := 50000.0

	tests := []struct {
		action     string
		wantStop   float64
		wantTarget float64
	}{
		{types.ActionBuy, price * 0.975, price * 1.04},
		{types.ActionSell, price * 1.025, price * 0.96},
		{types.ActionHold, price * 0.98, price * 1.02},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			stop, target := PriceLevels(tt.action, price)
			if math.Abs(stop-tt.wantStop) > 1e-6 {
				t.Errorf("stop = %v, want %v", stop, tt.wantStop)
			}
			if math.Abs(target-tt.wantTarget) > 1e-6 {
				t.Errorf("target = %v, want %v", target, tt.wantTarget)
			}
		})
	}
}

// A sustained uptrend pushes RSI into overbought, which votes SELL,
// but trend-following MACD and moving averages outvote it.
func TestScoreSustainedUptrend(t *testing.T) {
	candles := make([]types.Candle, 30)
	for i := range candles {
		c := 100 + float64(i)*2
		candles[i] = types.Candle{Open: c - 1, High: c + 1, Low: c - 2, Close: c, Volume: 10}
	}
	calc := indicator.NewCalculator(14)
	snap := types.MarketSnapshot{
		Symbol:     "BTCUSDT",
		Price:      candles[len(candles)-1].Close,
		Indicators: calc.Snapshot(candles),
	}

	scorer := NewScorer(30, 70)
	opinion := scorer.Score(snap)
	if opinion.Action == types.ActionSell {
		t.Errorf("Action = SELL in a 30-candle uptrend, reasoning %q", opinion.Reasoning)
	}
}
