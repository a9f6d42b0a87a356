package signal

import (
	"math"
	"strings"
	"testing"

	"bitcoin-ai-trader/types"
)

func opinion(action string, confidence float64) types.SignalOpinion {
	return types.SignalOpinion{
		Symbol:     "BTCUSDT",
		Action:     action,
		Confidence: confidence,
		EntryPrice: 50000,
		StopLoss:   48750,
		TakeProfit: 52000,
		RiskLevel:  types.RiskMedium,
		Reasoning:  "test reasoning",
		Sentiment:  types.SentimentNeutral,
	}
}

func TestCombineAgreement(t *testing.T) {
	c := NewCombiner(0.7)

	got := c.Combine(opinion(types.ActionBuy, 0.8), opinion(types.ActionBuy, 0.9))
	if got.Action != types.ActionBuy {
		t.Errorf("Action = %v, want BUY when both agree", got.Action)
	}
	// 0.9*0.6 + 0.8*0.4 = 0.86
	if math.Abs(got.Confidence-0.86) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.86", got.Confidence)
	}
}

func TestCombineDisagreement(t *testing.T) {
	c := NewCombiner(0.5)

	// External SELL (score 0) against technical BUY (score 1) lands on
	// the 0.4 boundary, which is HOLD territory.
	got := c.Combine(opinion(types.ActionBuy, 0.8), opinion(types.ActionSell, 0.8))
	if got.Action != types.ActionHold {
		t.Errorf("Action = %v, want HOLD on a full disagreement", got.Action)
	}

	// External SELL against technical HOLD scores 0.2, below the SELL
	// threshold.
	got = c.Combine(opinion(types.ActionHold, 0.8), opinion(types.ActionSell, 0.8))
	if got.Action != types.ActionSell {
		t.Errorf("Action = %v, want SELL when the external side dominates", got.Action)
	}
}

func TestCombineConfidenceFloor(t *testing.T) {
	tests := []struct {
		name       string
		technical  types.SignalOpinion
		external   types.SignalOpinion
		wantAction string
		wantConf   float64
	}{
		{
			name:       "strong technical cannot rescue weak external",
			technical:  opinion(types.ActionBuy, 0.9),
			external:   opinion(types.ActionBuy, 0.5),
			wantAction: types.ActionHold,
			wantConf:   0.66,
		},
		{
			name:       "floor cleared when external is confident",
			technical:  opinion(types.ActionBuy, 0.9),
			external:   opinion(types.ActionBuy, 0.75),
			wantAction: types.ActionBuy,
			wantConf:   0.81,
		},
	}

	c := NewCombiner(0.7)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Combine(tt.technical, tt.external)
			if got.Action != tt.wantAction {
				t.Errorf("Action = %v, want %v", got.Action, tt.wantAction)
			}
			if math.Abs(got.Confidence-tt.wantConf) > 1e-9 {
				t.Errorf("Confidence = %v, want %v (preserved, not zeroed)", got.Confidence, tt.wantConf)
			}
			if tt.wantAction == types.ActionHold && !strings.Contains(got.Reasoning, "Confidence too low") {
				t.Errorf("Reasoning = %q, want the low-confidence note", got.Reasoning)
			}
		})
	}
}

func TestCombineCarriesExternalLevels(t *testing.T) {
	c := NewCombiner(0.5)
	technical := opinion(types.ActionBuy, 0.8)
	technical.StopLoss = 1
	technical.TakeProfit = 2

	external := opinion(types.ActionBuy, 0.8)
	external.StopLoss = 48000
	external.TakeProfit = 53000
	external.RiskLevel = types.RiskLow
	external.Sentiment = types.SentimentBullish

	got := c.Combine(technical, external)
	if got.StopLoss != 48000 || got.TakeProfit != 53000 {
		t.Errorf("levels = %v/%v, want the external 48000/53000", got.StopLoss, got.TakeProfit)
	}
	if got.RiskLevel != types.RiskLow {
		t.Errorf("RiskLevel = %v, want external LOW", got.RiskLevel)
	}
	if got.Sentiment != types.SentimentBullish {
		t.Errorf("Sentiment = %v, want external BULLISH", got.Sentiment)
	}
}

func TestCombineSymbolFallback(t *testing.T) {
	c := NewCombiner(0.5)
	technical := opinion(types.ActionHold, 0.6)
	external := opinion(types.ActionHold, 0.6)
	external.Symbol = ""

	got := c.Combine(technical, external)
	if got.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want fallback to the technical symbol", got.Symbol)
	}
}

func TestCombineKeepsBothReasonings(t *testing.T) {
	c := NewCombiner(0.5)
	technical := opinion(types.ActionBuy, 0.8)
	technical.Reasoning = "tech side"
	external := opinion(types.ActionBuy, 0.8)
	external.Reasoning = "ai side"

	got := c.Combine(technical, external)
	if !strings.Contains(got.Reasoning, "AI: ai side") || !strings.Contains(got.Reasoning, "Tech: tech side") {
		t.Errorf("Reasoning = %q, want both sides kept", got.Reasoning)
	}
}

// Combined confidence is a convex combination of the two inputs, so it
// can never leave the interval they span.
func TestCombineConfidenceConvex(t *testing.T) {
	c := NewCombiner(0.01)

	for techConf := 0.0; techConf <= 1.0; techConf += 0.2 {
		for extConf := 0.0; extConf <= 1.0; extConf += 0.2 {
			got := c.Combine(opinion(types.ActionBuy, techConf), opinion(types.ActionBuy, extConf))
			lo := math.Min(techConf, extConf)
			hi := math.Max(techConf, extConf)
			if got.Confidence < lo-1e-9 || got.Confidence > hi+1e-9 {
				t.Fatalf("Confidence = %v for tech %.1f / external %.1f, want within [%v, %v]",
					got.Confidence, techConf, extConf, lo, hi)
			}
		}
	}
}

func TestNewCombinerDefaults(t *testing.T) {
	if got := NewCombiner(0).MinConfidence(); got != 0.7 {
		t.Errorf("MinConfidence() = %v, want default 0.7 for zero input", got)
	}
	if got := NewCombiner(1.5).MinConfidence(); got != 0.7 {
		t.Errorf("MinConfidence() = %v, want default 0.7 for out-of-range input", got)
	}
	if got := NewCombiner(0.6).MinConfidence(); got != 0.6 {
		t.Errorf("MinConfidence() = %v, want 0.6", got)
	}
}
