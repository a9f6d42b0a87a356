package types

import "time"

// RiskCheck is the outcome of one independent risk gate check.
type RiskCheck struct {
	Name      string      `json:"name"`
	Passed    bool        `json:"passed"`
	Value     interface{} `json:"value"`
	Threshold interface{} `json:"threshold"`
	Message   string      `json:"message"`
}

// RiskEvaluation is the risk gate's verdict for one combined signal.
// ConfidenceScore is the fraction of checks that passed, which is
// distinct from the signal's own confidence. Evaluations are created
// once per signal and never mutated.
type RiskEvaluation struct {
	Approved           bool        `json:"approved"`
	ConfidenceScore    float64     `json:"confidence_score"`
	Checks             []RiskCheck `json:"checks"`
	Recommendation     string      `json:"recommendation"`
	MaxPositionSize    float64     `json:"max_position_size"`
	SuggestedStopLoss  float64     `json:"suggested_stop_loss"`
	SuggestedTakeProfit float64    `json:"suggested_take_profit"`
	Timestamp          time.Time   `json:"timestamp"`
}
