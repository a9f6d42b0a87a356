package signal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"bitcoin-ai-trader/types"
)

// Aggregation weights per indicator. Volume is confirmation-only and
// holds no weight; the average normalizes over the 0.95 total.
const (
	weightRSI            = 0.25
	weightMACD           = 0.25
	weightMovingAverages = 0.25
	weightSupportResist  = 0.20
)

// srProximity is how close (as a fraction of price) a support or
// resistance level must be to trigger a vote.
const srProximity = 0.02

// vote is one indicator's contribution to the technical opinion.
type vote struct {
	action   string
	strength string
	reason   string
}

// Scorer maps an IndicatorSnapshot to a single technical SignalOpinion.
type Scorer struct {
	rsiOversold   float64
	rsiOverbought float64
}

// NewScorer creates a scorer with the given RSI thresholds. Zero values
// select the conventional 30/70.
func NewScorer(oversold, overbought float64) *Scorer {
	if oversold <= 0 {
		oversold = 30
	}
	if overbought <= 0 {
		overbought = 70
	}
	return &Scorer{rsiOversold: oversold, rsiOverbought: overbought}
}

// Score produces the technical opinion for a market snapshot. The
// aggregate is a weighted average of the per-indicator action scores;
// confidence is the distance from the neutral 0.5, scaled to [0,1].
func (s *Scorer) Score(snap types.MarketSnapshot) types.SignalOpinion {
	ind := snap.Indicators
	price := snap.Price

	votes := map[string]vote{
		"rsi":                s.voteRSI(ind.RSI),
		"macd":               voteMACD(ind.MACD),
		"moving_averages":    voteMovingAverages(price, ind.MovingAverages),
		"support_resistance": voteSupportResistance(price, ind.SupportLevels, ind.ResistanceLevels),
	}
	weights := map[string]float64{
		"rsi":                weightRSI,
		"macd":               weightMACD,
		"moving_averages":    weightMovingAverages,
		"support_resistance": weightSupportResist,
	}

	totalScore := 0.0
	totalWeight := 0.0
	var keyFactors []string
	var reasons []string
	for name, v := range votes {
		w := weights[name]
		totalScore += types.ActionToScore(v.action) * w
		totalWeight += w
		if v.action != types.ActionHold {
			keyFactors = append(keyFactors, fmt.Sprintf("%s: %s", name, v.action))
			reasons = append(reasons, v.reason)
		}
	}

	avgScore := 0.5
	if totalWeight > 0 {
		avgScore = totalScore / totalWeight
	}
	action := types.ScoreToAction(avgScore)
	confidence := math.Min(math.Abs(avgScore-0.5)*2, 1.0)

	// Volume never votes, it only colors the reasoning.
	volumeRatio := 0.0
	if snap.AvgVolume > 0 {
		volumeRatio = snap.Ticker.Volume24h / snap.AvgVolume
	}
	if volumeRatio > 1.5 {
		reasons = append(reasons, fmt.Sprintf("high volume confirmation (%.1fx average)", volumeRatio))
	} else if volumeRatio > 0 && volumeRatio < 0.5 {
		reasons = append(reasons, fmt.Sprintf("caution: low volume (%.1fx average)", volumeRatio))
	}

	reasoning := "No strong technical signals"
	if len(reasons) > 0 {
		reasoning = strings.Join(reasons, "; ")
	}

	stop, target := PriceLevels(action, price)
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

func (s *Scorer) voteRSI(rsi float64) vote {
	switch {
	case rsi <= s.rsiOversold:
		strength := "MEDIUM"
		if rsi <= 20 {
			strength = "STRONG"
		}
		return vote{types.ActionBuy, strength, fmt.Sprintf("RSI oversold at %.1f", rsi)}
	case rsi >= s.rsiOverbought:
		strength := "MEDIUM"
		if rsi >= 80 {
			strength = "STRONG"
		}
		return vote{types.ActionSell, strength, fmt.Sprintf("RSI overbought at %.1f", rsi)}
	default:
		return vote{types.ActionHold, "WEAK", fmt.Sprintf("RSI neutral at %.1f", rsi)}
	}
}

func voteMACD(macd types.MACDValues) vote {
	switch {
	case macd.MACD > macd.Signal && macd.Histogram > 0:
		return vote{types.ActionBuy, "MEDIUM", "MACD bullish crossover"}
	case macd.MACD < macd.Signal && macd.Histogram < 0:
		return vote{types.ActionSell, "MEDIUM", "MACD bearish crossover"}
	default:
		return vote{types.ActionHold, "WEAK", "MACD no clear signal"}
	}
}

func voteMovingAverages(price float64, ma types.MovingAverages) vote {
	bullish := 0
	bearish := 0

	if price > ma.SMA20 && ma.SMA20 > ma.SMA50 {
		bullish++
	} else if price < ma.SMA20 && ma.SMA20 < ma.SMA50 {
		bearish++
	}
	if ma.EMA12 > ma.EMA26 {
		bullish++
	} else if ma.EMA12 < ma.EMA26 {
		bearish++
	}

	switch {
	case bullish > bearish:
		return vote{types.ActionBuy, "MEDIUM", fmt.Sprintf("bullish MA alignment (%d signals)", bullish)}
	case bearish > bullish:
		return vote{types.ActionSell, "MEDIUM", fmt.Sprintf("bearish MA alignment (%d signals)", bearish)}
	default:
		return vote{types.ActionHold, "WEAK", "mixed moving averages"}
	}
}

func voteSupportResistance(price float64, supports, resistances []float64) vote {
	if price <= 0 || (len(supports) == 0 && len(resistances) == 0) {
		return vote{types.ActionHold, "WEAK", "no S/R levels"}
	}

	nearestSupport := 0.0
	for _, s := range supports {
		if s < price && s > nearestSupport {
			nearestSupport = s
		}
	}
	nearestResistance := math.Inf(1)
	for _, r := range resistances {
		if r > price && r < nearestResistance {
			nearestResistance = r
		}
	}

	if nearestSupport > 0 && (price-nearestSupport)/price < srProximity {
		return vote{types.ActionBuy, "MEDIUM", fmt.Sprintf("near support at %.2f", nearestSupport)}
	}
	if !math.IsInf(nearestResistance, 1) && (nearestResistance-price)/price < srProximity {
		return vote{types.ActionSell, "MEDIUM", fmt.Sprintf("near resistance at %.2f", nearestResistance)}
	}
	return vote{types.ActionHold, "WEAK", "not near significant S/R levels"}
}
