package signal

import (
	"fmt"
	"time"

	"bitcoin-ai-trader/types"
)

// Combination weights. The external opinion is assumed to hold the more
// precise price levels and carries the larger weight.
const (
	externalWeight  = 0.6
	technicalWeight = 0.4
)

// Combiner merges a technical opinion and an external opinion into the
// final trading decision.
type Combiner struct {
	minConfidence float64
}

// NewCombiner creates a combiner with the given confidence floor.
// Combined opinions below the floor are downgraded to HOLD.
func NewCombiner(minConfidence float64) *Combiner {
	if minConfidence <= 0 || minConfidence > 1 {
		minConfidence = 0.7
	}
	return &Combiner{minConfidence: minConfidence}
}

// Combine produces a new SignalOpinion from the two inputs; neither
// input is mutated. Action and confidence are weighted averages, the
// price levels and risk assessment carry over from the external
// opinion, and both reasoning strings are kept for audit traceability.
// When the combined confidence is below the floor only the action is
// downgraded to HOLD; the confidence value itself is preserved.
func (c *Combiner) Combine(technical, external types.SignalOpinion) types.SignalOpinion {
	score := types.ActionToScore(external.Action)*externalWeight +
		types.ActionToScore(technical.Action)*technicalWeight
	action := types.ScoreToAction(score)

	confidence := external.Confidence*externalWeight + technical.Confidence*technicalWeight

	reasoning := fmt.Sprintf("AI: %s | Tech: %s", external.Reasoning, technical.Reasoning)

	keyFactors := make([]string, 0, len(external.KeyFactors)+len(technical.KeyFactors))
	keyFactors = append(keyFactors, external.KeyFactors...)
	keyFactors = append(keyFactors, technical.KeyFactors...)

	combined := types.SignalOpinion{
		Symbol:     external.Symbol,
		Action:     action,
		Confidence: confidence,
		EntryPrice: external.EntryPrice,
		StopLoss:   external.StopLoss,
		TakeProfit: external.TakeProfit,
		RiskLevel:  external.RiskLevel,
		Reasoning:  reasoning,
		KeyFactors: keyFactors,
		Sentiment:  external.Sentiment,
		Timestamp:  time.Now(),
	}
	if combined.Symbol == "" {
		combined.Symbol = technical.Symbol
	}

	if confidence < c.minConfidence {
		combined.Action = types.ActionHold
		combined.Reasoning += fmt.Sprintf(" | Confidence too low: %.0f%%", confidence*100)
	}

	return combined
}

// MinConfidence returns the configured confidence floor.
func (c *Combiner) MinConfidence() float64 {
	return c.minConfidence
}
