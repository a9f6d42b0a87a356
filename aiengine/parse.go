package aiengine

import (
	"encoding/json"
	"fmt"
	"strings"

	"bitcoin-ai-trader/types"
)

// opinionSchema mirrors the JSON the model is asked to produce.
// Required fields are pointers so that absence is detectable: a missing
// action, confidence or entry price rejects the whole reply.
type opinionSchema struct {
	Action     *string  `json:"action"`
	Confidence *float64 `json:"confidence"`
	EntryPrice *float64 `json:"entry_price"`
	StopLoss   float64  `json:"stop_loss"`
	TakeProfit float64  `json:"take_profit"`
	RiskLevel  string   `json:"risk_level"`
	Reasoning  string   `json:"reasoning"`
	KeyFactors []string `json:"key_factors"`
	Sentiment  string   `json:"market_sentiment"`
}

// parseOpinion extracts the JSON object embedded in the model reply and
// decodes it against the strict schema. Any missing required field or
// out-of-range value fails closed so the caller falls back.
func parseOpinion(content string) (types.SignalOpinion, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return types.SignalOpinion{}, fmt.Errorf("no JSON object in reply")
	}

	var schema opinionSchema
	if err := json.Unmarshal([]byte(content[start:end+1]), &schema); err != nil {
		return types.SignalOpinion{}, fmt.Errorf("error parsing reply JSON: %w", err)
	}

	if schema.Action == nil || schema.Confidence == nil || schema.EntryPrice == nil {
		return types.SignalOpinion{}, fmt.Errorf("reply missing required fields")
	}
	action := strings.ToUpper(*schema.Action)
	if !types.ValidAction(action) {
		return types.SignalOpinion{}, fmt.Errorf("invalid action %q", *schema.Action)
	}
	if *schema.Confidence < 0 || *schema.Confidence > 1 {
		return types.SignalOpinion{}, fmt.Errorf("confidence %.2f out of range", *schema.Confidence)
	}
	if *schema.EntryPrice <= 0 {
		return types.SignalOpinion{}, fmt.Errorf("entry price %.2f not positive", *schema.EntryPrice)
	}

	riskLevel := strings.ToUpper(schema.RiskLevel)
	if riskLevel != types.RiskLow && riskLevel != types.RiskMedium && riskLevel != types.RiskHigh {
		riskLevel = types.RiskMedium
	}
	sentiment := strings.ToUpper(schema.Sentiment)
	if sentiment != types.SentimentBullish && sentiment != types.SentimentBearish {
		sentiment = types.SentimentNeutral
	}

	return types.SignalOpinion{
		Action:     action,
		Confidence: *schema.Confidence,
		EntryPrice: *schema.EntryPrice,
		StopLoss:   schema.StopLoss,
		TakeProfit: schema.TakeProfit,
		RiskLevel:  riskLevel,
		Reasoning:  schema.Reasoning,
		KeyFactors: schema.KeyFactors,
		Sentiment:  sentiment,
	}, nil
}
