package types

import "time"

// Constants for signal actions
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Constants for risk levels
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Constants for market sentiment
const (
	SentimentBullish = "BULLISH"
	SentimentBearish = "BEARISH"
	SentimentNeutral = "NEUTRAL"
)

// SignalOpinion represents one source's trading opinion for a symbol.
// Opinions are never mutated after creation; combining two opinions
// produces a new one.
type SignalOpinion struct {
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`     // BUY, SELL, HOLD
	Confidence float64   `json:"confidence"` // 0-1
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	RiskLevel  string    `json:"risk_level"` // LOW, MEDIUM, HIGH
	Reasoning  string    `json:"reasoning"`
	KeyFactors []string  `json:"key_factors"`
	Sentiment  string    `json:"market_sentiment"`
	Timestamp  time.Time `json:"timestamp"`
}

// ValidAction reports whether s is one of the three recognized actions.
func ValidAction(s string) bool {
	return s == ActionBuy || s == ActionSell || s == ActionHold
}

// ActionToScore converts an action to its numerical score.
func ActionToScore(action string) float64 {
	switch action {
	case ActionBuy:
		return 1.0
	case ActionSell:
		return 0.0
	default:
		return 0.5
	}
}

// ScoreToAction converts a numerical score back to an action.
// Scores above 0.6 are BUY, below 0.4 are SELL, the middle band is HOLD.
func ScoreToAction(score float64) string {
	if score > 0.6 {
		return ActionBuy
	}
	if score < 0.4 {
		return ActionSell
	}
	return ActionHold
}
