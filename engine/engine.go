package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitcoin-ai-trader/config"
	"bitcoin-ai-trader/exchange"
	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/notification"
	"bitcoin-ai-trader/risk"
	"bitcoin-ai-trader/signal"
	"bitcoin-ai-trader/storage"
	"bitcoin-ai-trader/types"
)

// MarketSource provides the market snapshot a cycle analyzes.
type MarketSource interface {
	Snapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error)
}

// Advisor produces the external opinion for a snapshot. It never
// errors, falling back to rule-based analysis internally.
type Advisor interface {
	AnalyzeMarket(ctx context.Context, snap types.MarketSnapshot) types.SignalOpinion
}

// Publisher receives every finished cycle result for fan-out, such as
// a websocket hub. A nil publisher is allowed.
type Publisher interface {
	Publish(event string, payload interface{})
}

// CycleResult is what one trading cycle produced.
type CycleResult struct {
	Snapshot  *types.MarketSnapshot `json:"snapshot"`
	Technical types.SignalOpinion   `json:"technical"`
	External  types.SignalOpinion   `json:"external"`
	Combined  types.SignalOpinion   `json:"combined"`
	Risk      *types.RiskEvaluation `json:"risk,omitempty"`
	Trade     *types.Trade          `json:"trade,omitempty"`
	Duration  time.Duration         `json:"duration_ms"`
}

// minCycleTimeout is the floor for the per-cycle deadline. Short cycle
// intervals still leave room for the advisor's own 30s HTTP budget.
const minCycleTimeout = 30 * time.Second

// Engine drives the analyze-decide-execute loop.
type Engine struct {
	cfg          config.Config
	market       MarketSource
	advisor      Advisor
	scorer       *signal.Scorer
	combiner     *signal.Combiner
	riskMgr      *risk.Manager
	exch         exchange.Exchange
	store        *storage.Store
	notifier     *notification.Manager
	pub          Publisher
	cycleTimeout time.Duration

	// cycleLock enforces single-flight per symbol: an overlapping tick
	// is skipped, not queued.
	cycleLock sync.Mutex

	mu         sync.Mutex
	running    bool
	cancelRun  context.CancelFunc
	cycleCount int
	lastCycle  time.Time
	lastError  string
	lastResult *CycleResult
}

func New(cfg config.Config, market MarketSource, advisor Advisor, scorer *signal.Scorer,
	combiner *signal.Combiner, riskMgr *risk.Manager, exch exchange.Exchange,
	store *storage.Store, notifier *notification.Manager, pub Publisher) *Engine {
	timeout := cfg.Bot.CycleInterval
	if timeout < minCycleTimeout {
		timeout = minCycleTimeout
	}
	return &Engine{
		cfg:          cfg,
		market:       market,
		advisor:      advisor,
		scorer:       scorer,
		combiner:     combiner,
		riskMgr:      riskMgr,
		exch:         exch,
		store:        store,
		notifier:     notifier,
		pub:          pub,
		cycleTimeout: timeout,
	}
}

// ErrCycleInProgress is returned when a cycle is requested while the
// previous one for the same symbol is still running.
var ErrCycleInProgress = errors.New("analysis cycle already in progress")

// RunCycle executes one full trading cycle for the configured symbol.
// The cycle runs under a deadline so a stalled upstream read cannot
// hold the cycle lock forever and starve every following tick.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !e.cycleLock.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer e.cycleLock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cycleTimeout)
	defer cancel()

	started := time.Now()
	symbol := e.cfg.Bot.Symbol
	logger.Info(fmt.Sprintf("Cycle start for %s", symbol))

	snap, err := e.market.Snapshot(ctx, symbol)
	if err != nil {
		e.recordCycle(err)
		return nil, fmt.Errorf("market snapshot: %w", err)
	}

	// Technical scoring and the external advisor are independent, so
	// they run concurrently and join before combining.
	var (
		wg        sync.WaitGroup
		technical types.SignalOpinion
		external  types.SignalOpinion
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		technical = e.scorer.Score(*snap)
	}()
	go func() {
		defer wg.Done()
		external = e.advisor.AnalyzeMarket(ctx, *snap)
	}()
	wg.Wait()

	combined := e.combiner.Combine(technical, external)
	e.store.SaveSignal(combined)
	e.notifier.Add(notification.SignalGenerated(combined))

	result := &CycleResult{
		Snapshot:  snap,
		Technical: technical,
		External:  external,
		Combined:  combined,
	}

	if combined.Action != types.ActionHold {
		eval, trade := e.decideAndExecute(ctx, combined, snap.Price)
		result.Risk = &eval
		result.Trade = trade
	} else {
		logger.Info(fmt.Sprintf("HOLD for %s (confidence %.0f%%), no order",
			symbol, combined.Confidence*100))
	}

	e.trackBalance(ctx)
	e.recordCycle(nil)

	result.Duration = time.Since(started)
	e.mu.Lock()
	e.lastResult = result
	e.mu.Unlock()
	logger.Info(fmt.Sprintf("Cycle done for %s in %s: %s at %.0f%% confidence",
		symbol, result.Duration.Round(time.Millisecond), combined.Action, combined.Confidence*100))

	if e.pub != nil {
		e.pub.Publish("cycle", result)
	}
	return result, nil
}

// decideAndExecute runs the risk gate and, if approved, places the
// order. Execution failures are reported through notifications, never
// as a cycle error.
func (e *Engine) decideAndExecute(ctx context.Context, opinion types.SignalOpinion, marketPrice float64) (types.RiskEvaluation, *types.Trade) {
	balance := e.quoteBalance(ctx)
	tradesToday := e.exch.TradesToday(time.Now())

	eval := e.riskMgr.Evaluate(opinion, balance, tradesToday, marketPrice)
	if !eval.Approved {
		e.notifier.Add(notification.RiskRejected(opinion, eval))
		return eval, nil
	}

	size := eval.MaxPositionSize
	if size <= 0 {
		logger.Warn(fmt.Sprintf("approved %s for %s but position size is zero, skipping",
			opinion.Action, opinion.Symbol))
		return eval, nil
	}

	var (
		trade *types.Trade
		err   error
	)
	switch opinion.Action {
	case types.ActionBuy:
		trade, err = e.exch.PlaceBuyOrder(ctx, opinion.Symbol, size, marketPrice)
	case types.ActionSell:
		trade, err = e.exch.PlaceSellOrder(ctx, opinion.Symbol, size, marketPrice)
	default:
		return eval, nil
	}

	if err != nil {
		logger.Warn(fmt.Sprintf("order failed for %s %s: %v", opinion.Action, opinion.Symbol, err))
		e.notifier.Add(notification.SystemAlert(
			fmt.Sprintf("%s order failed", opinion.Symbol),
			err.Error()))
		return eval, nil
	}

	e.store.SaveTrade(*trade)
	e.notifier.Add(notification.OrderExecuted(*trade))
	return eval, trade
}

func (e *Engine) quoteBalance(ctx context.Context) float64 {
	balances, err := e.exch.Balance(ctx)
	if err != nil {
		logger.Warn(fmt.Sprintf("balance fetch failed: %v", err))
		return 0
	}
	return balances[e.cfg.Bot.QuoteCurrency]
}

func (e *Engine) trackBalance(ctx context.Context) {
	if balance := e.quoteBalance(ctx); balance > 0 {
		e.riskMgr.RecordBalance(balance)
	}
}

func (e *Engine) recordCycle(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cycleCount++
	e.lastCycle = time.Now()
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
	}
}

// Start launches the periodic trading loop. It is a no-op when the
// loop is already running.
func (e *Engine) Start(parent context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	e.running = true
	e.cancelRun = cancel
	e.mu.Unlock()

	logger.Info(fmt.Sprintf("Trading loop started (interval %s, mode %s)",
		e.cfg.Bot.CycleInterval, e.cfg.Bot.Mode))

	go func() {
		ticker := time.NewTicker(e.cfg.Bot.CycleInterval)
		defer ticker.Stop()

		// First cycle fires immediately rather than one interval in.
		e.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				logger.Info("Trading loop stopped")
				return
			case <-ticker.C:
				e.tick(ctx)
			}
		}
	}()
}

func (e *Engine) tick(ctx context.Context) {
	if _, err := e.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			logger.Warn("previous cycle still running, tick skipped")
			return
		}
		logger.Error(fmt.Sprintf("cycle failed: %v", err))
	}
}

// Stop halts the periodic loop. The in-flight cycle finishes.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.cancelRun()
	e.running = false
}

// Running reports whether the periodic loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// LastResult returns the most recent cycle result, or nil before the
// first cycle completes.
func (e *Engine) LastResult() *CycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

// Status summarizes the engine state for the API.
func (e *Engine) Status() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	peak, drawdown := e.riskMgr.Drawdown()
	return map[string]interface{}{
		"running":      e.running,
		"mode":         e.cfg.Bot.Mode,
		"symbol":       e.cfg.Bot.Symbol,
		"interval":     e.cfg.Bot.CycleInterval.String(),
		"cycles":       e.cycleCount,
		"last_cycle":   e.lastCycle,
		"last_error":   e.lastError,
		"peak_balance": peak,
		"max_drawdown": drawdown,
	}
}
