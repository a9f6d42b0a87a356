package signal

import "bitcoin-ai-trader/types"

// Default stop/target distances used when an opinion has to derive its
// own price levels.
const (
	stopDistance   = 0.025 // 2.5% against the position
	targetDistance = 0.04  // 4% in favor
	holdBand       = 0.02  // tight symmetric band around HOLD
)

// PriceLevels derives stop-loss and take-profit levels for an action at
// the given price. BUY stops below and targets above, SELL is the
// mirror image, HOLD gets a tight symmetric band.
func PriceLevels(action string, price float64) (stopLoss, takeProfit float64) {
	if price <= 0 {
		return 0, 0
	}
	switch action {
	case types.ActionBuy:
		return price * (1 - stopDistance), price * (1 + targetDistance)
	case types.ActionSell:
		return price * (1 + stopDistance), price * (1 - targetDistance)
	default:
		return price * (1 - holdBand), price * (1 + holdBand)
	}
}
