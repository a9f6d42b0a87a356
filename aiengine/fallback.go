package aiengine

import (
	"math"
	"strings"
	"time"

	"bitcoin-ai-trader/signal"
	"bitcoin-ai-trader/types"
)

// Fallback confidence model: a neutral base plus fixed increments per
// heuristic that fires, capped below full certainty.
const (
	fallbackBase          = 0.6
	rsiIncrement          = 0.2
	volumeIncrement       = 0.1
	srIncrement           = 0.1
	fallbackConfidenceCap = 0.85
)

// FallbackOpinion derives a rule-based opinion from the snapshot's own
// indicators, using the same oversold/overbought and proximity
// thresholds as the technical scorer. It is used whenever the external
// analysis is unavailable or rejected.
func FallbackOpinion(snap types.MarketSnapshot) types.SignalOpinion {
	price := snap.Price
	ind := snap.Indicators

	action := types.ActionHold
	confidence := fallbackBase
	var reasons []string
	keyFactors := []string{"rule_based_analysis", "technical_indicators"}

	if ind.RSI < 30 {
		action = types.ActionBuy
		confidence += rsiIncrement
		reasons = append(reasons, "RSI oversold")
	} else if ind.RSI > 70 {
		action = types.ActionSell
		confidence += rsiIncrement
		reasons = append(reasons, "RSI overbought")
	}

	if snap.AvgVolume > 0 && snap.Ticker.Volume24h > snap.AvgVolume*1.5 {
		confidence += volumeIncrement
		reasons = append(reasons, "high volume confirmation")
	}

	// Proximity to a level reinforces the direction but never flips an
	// RSI-driven action.
	nearestSupport := 0.0
	for _, s := range ind.SupportLevels {
		if s < price && s > nearestSupport {
			nearestSupport = s
		}
	}
	if nearestSupport > 0 && (price-nearestSupport)/price < 0.02 {
		if action != types.ActionSell {
			action = types.ActionBuy
		}
		confidence += srIncrement
		reasons = append(reasons, "near support level")
	}

	nearestResistance := math.Inf(1)
	for _, r := range ind.ResistanceLevels {
		if r > price && r < nearestResistance {
			nearestResistance = r
		}
	}
	if !math.IsInf(nearestResistance, 1) && (nearestResistance-price)/price < 0.02 {
		if action != types.ActionBuy {
			action = types.ActionSell
		}
		confidence += srIncrement
		reasons = append(reasons, "near resistance level")
	}

	confidence = math.Min(confidence, fallbackConfidenceCap)

	reasoning := "Fallback analysis"
	if len(reasons) > 0 {
		reasoning = "Fallback analysis: " + strings.Join(reasons, ", ")
	}

	stop, target := signal.PriceLevels(action, price)
	return types.SignalOpinion{
		Symbol:     snap.Symbol,
		Action:     action,
		Confidence: confidence,
		EntryPrice: price,
		StopLoss:   stop,
		TakeProfit: target,
		RiskLevel:  types.RiskMedium,
		Reasoning:  reasoning,
		KeyFactors: keyFactors,
		Sentiment:  types.SentimentNeutral,
		Timestamp:  time.Now(),
	}
}
