package risk

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"bitcoin-ai-trader/config"
	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/types"
)

const (
	totalChecks     = 5
	approvalRatio   = 0.7
	confidenceBoost = 1.5
)

// Manager gates every proposed trade through a fixed battery of checks
// and sizes the position for approved ones. It also tracks the account
// peak so drawdown can be reported.
type Manager struct {
	cfg config.RiskConfig

	mu          sync.Mutex
	peakBalance float64
	maxDrawdown float64
}

func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Evaluate runs the five checks against the opinion and the current
// account state. The gate approves when at least 70% of the checks
// pass, which with five checks means four of them. A panic anywhere in
// the evaluation yields a conservative rejection instead of taking the
// bot down.
func (m *Manager) Evaluate(opinion types.SignalOpinion, balance float64, tradesToday int, marketPrice float64) (eval types.RiskEvaluation) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Sprintf("risk evaluation panic: %v", r))
			eval = m.conservative(fmt.Sprintf("evaluation error: %v", r))
		}
	}()

	checks := []types.RiskCheck{
		m.checkConfidence(opinion),
		m.checkDailyLimit(tradesToday),
		m.checkPositionSize(opinion, balance, marketPrice),
		m.checkRiskReward(opinion),
		m.checkRiskLevel(opinion),
	}

	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}
	score := float64(passed) / totalChecks

	eval = types.RiskEvaluation{
		Approved:        score >= approvalRatio,
		ConfidenceScore: score,
		Checks:          checks,
		MaxPositionSize: m.CalculatePositionSize(opinion, balance, marketPrice),
		Timestamp:       time.Now(),
	}
	eval.SuggestedStopLoss, eval.SuggestedTakeProfit = m.suggestLevels(opinion, marketPrice)
	eval.Recommendation = m.recommendation(eval, opinion)

	logger.Info(fmt.Sprintf("Risk gate %s: %d/%d checks passed (%s %s, confidence %.0f%%)",
		approvalWord(eval.Approved), passed, totalChecks, opinion.Action, opinion.Symbol,
		opinion.Confidence*100))
	return eval
}

func approvalWord(approved bool) string {
	if approved {
		return "APPROVED"
	}
	return "REJECTED"
}

func (m *Manager) checkConfidence(opinion types.SignalOpinion) types.RiskCheck {
	passed := opinion.Confidence >= m.cfg.MinConfidence
	msg := fmt.Sprintf("confidence %.2f meets minimum %.2f", opinion.Confidence, m.cfg.MinConfidence)
	if !passed {
		msg = fmt.Sprintf("confidence %.2f below minimum %.2f", opinion.Confidence, m.cfg.MinConfidence)
	}
	return types.RiskCheck{
		Name:      "confidence",
		Passed:    passed,
		Value:     opinion.Confidence,
		Threshold: m.cfg.MinConfidence,
		Message:   msg,
	}
}

func (m *Manager) checkDailyLimit(tradesToday int) types.RiskCheck {
	passed := tradesToday < m.cfg.MaxDailyTrades
	msg := fmt.Sprintf("%d of %d daily trades used", tradesToday, m.cfg.MaxDailyTrades)
	if !passed {
		msg = fmt.Sprintf("daily trade limit reached (%d)", m.cfg.MaxDailyTrades)
	}
	return types.RiskCheck{
		Name:      "daily_trade_limit",
		Passed:    passed,
		Value:     tradesToday,
		Threshold: m.cfg.MaxDailyTrades,
		Message:   msg,
	}
}

// checkPositionSize always passes. The sizing formula already caps the
// position, so the check exists to surface the computed size in the
// evaluation report.
func (m *Manager) checkPositionSize(opinion types.SignalOpinion, balance, marketPrice float64) types.RiskCheck {
	size := m.CalculatePositionSize(opinion, balance, marketPrice)
	return types.RiskCheck{
		Name:      "position_size",
		Passed:    true,
		Value:     size,
		Threshold: m.cfg.MaxPositionPercent,
		Message:   fmt.Sprintf("position capped at %.6f (%.1f%% of balance)", size, m.cfg.MaxPositionPercent),
	}
}

func (m *Manager) checkRiskReward(opinion types.SignalOpinion) types.RiskCheck {
	check := types.RiskCheck{
		Name:      "risk_reward",
		Threshold: m.cfg.MinRiskReward,
	}

	riskDist := opinion.EntryPrice - opinion.StopLoss
	rewardDist := opinion.TakeProfit - opinion.EntryPrice
	if opinion.Action == types.ActionSell {
		riskDist = opinion.StopLoss - opinion.EntryPrice
		rewardDist = opinion.EntryPrice - opinion.TakeProfit
	}

	if riskDist <= 0 || rewardDist <= 0 {
		check.Passed = false
		check.Value = 0.0
		check.Message = "price levels do not define a valid risk/reward"
		return check
	}

	ratio := rewardDist / riskDist
	check.Value = ratio
	check.Passed = ratio >= m.cfg.MinRiskReward
	check.Message = fmt.Sprintf("risk/reward %.2f vs minimum %.2f", ratio, m.cfg.MinRiskReward)
	return check
}

func (m *Manager) checkRiskLevel(opinion types.SignalOpinion) types.RiskCheck {
	level := strings.ToUpper(opinion.RiskLevel)
	passed := level == types.RiskLow || level == types.RiskMedium
	msg := fmt.Sprintf("risk level %s acceptable", level)
	if !passed {
		msg = fmt.Sprintf("risk level %s exceeds tolerance", level)
	}
	return types.RiskCheck{
		Name:      "risk_level",
		Passed:    passed,
		Value:     level,
		Threshold: types.RiskMedium,
		Message:   msg,
	}
}

// CalculatePositionSize returns the trade size in base currency. Two
// caps apply: the max-position cap (a fixed percent of the balance) and
// the risk cap (the size at which hitting the stop loses exactly
// riskPerTrade of the balance). The smaller wins, then the result is
// scaled by the signal confidence, boosted but never above 1.
func (m *Manager) CalculatePositionSize(opinion types.SignalOpinion, balance, marketPrice float64) float64 {
	if balance <= 0 {
		return 0
	}

	entry := opinion.EntryPrice
	if entry <= 0 {
		entry = marketPrice
	}
	if entry <= 0 {
		return 0
	}

	capSize := balance * (m.cfg.MaxPositionPercent / 100) / entry

	stopDist := math.Abs(entry - opinion.StopLoss)
	size := capSize
	if opinion.StopLoss > 0 && stopDist > 0 {
		riskSize := balance * m.cfg.RiskPerTrade / stopDist
		size = math.Min(capSize, riskSize)
	}

	multiplier := math.Min(opinion.Confidence*confidenceBoost, 1.0)
	return size * multiplier
}

// suggestLevels echoes the opinion's levels when they are usable and
// otherwise derives them from the configured percents off the market
// price.
func (m *Manager) suggestLevels(opinion types.SignalOpinion, marketPrice float64) (stop, target float64) {
	ref := opinion.EntryPrice
	if ref <= 0 {
		ref = marketPrice
	}

	stop = opinion.StopLoss
	target = opinion.TakeProfit
	if stop <= 0 {
		stop = ref * (1 - m.cfg.StopLossPercent/100)
	}
	if target <= 0 {
		target = ref * (1 + m.cfg.TakeProfitPercent/100)
	}
	return stop, target
}

func (m *Manager) recommendation(eval types.RiskEvaluation, opinion types.SignalOpinion) string {
	if eval.Approved {
		return fmt.Sprintf("Execute %s with size up to %.6f, stop %.2f, target %.2f",
			opinion.Action, eval.MaxPositionSize, eval.SuggestedStopLoss, eval.SuggestedTakeProfit)
	}

	var failed []string
	for _, c := range eval.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return fmt.Sprintf("Do not trade: failed checks [%s]", strings.Join(failed, ", "))
}

// conservative is the fail-closed evaluation returned when the normal
// path cannot complete.
func (m *Manager) conservative(reason string) types.RiskEvaluation {
	return types.RiskEvaluation{
		Approved:        false,
		ConfidenceScore: 0,
		Checks: []types.RiskCheck{{
			Name:    "evaluation",
			Passed:  false,
			Message: reason,
		}},
		Recommendation: "Do not trade: risk evaluation failed",
		Timestamp:      time.Now(),
	}
}

// RecordBalance updates the peak balance and the max drawdown from it.
func (m *Manager) RecordBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if balance > m.peakBalance {
		m.peakBalance = balance
	}
	if m.peakBalance > 0 {
		dd := (m.peakBalance - balance) / m.peakBalance
		if dd > m.maxDrawdown {
			m.maxDrawdown = dd
		}
	}
}

// Drawdown returns the worst peak-to-trough decline seen so far as a
// fraction of the peak balance.
func (m *Manager) Drawdown() (peak, maxDrawdown float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakBalance, m.maxDrawdown
}
