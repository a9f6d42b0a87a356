package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitcoin-ai-trader/config"
	"bitcoin-ai-trader/exchange"
	"bitcoin-ai-trader/notification"
	"bitcoin-ai-trader/risk"
	"bitcoin-ai-trader/signal"
	"bitcoin-ai-trader/storage"
	"bitcoin-ai-trader/types"
)

type fakeMarket struct {
	snap *types.MarketSnapshot
	err  error
}

func (f *fakeMarket) Snapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

// blockedMarket simulates a stalled upstream read: it only returns once
// the context is cancelled.
type blockedMarket struct{}

func (blockedMarket) Snapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeAdvisor struct {
	opinion types.SignalOpinion
	delay   time.Duration
}

func (f *fakeAdvisor) AnalyzeMarket(ctx context.Context, snap types.MarketSnapshot) types.SignalOpinion {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.opinion
}

type capturingPublisher struct {
	events []string
}

func (p *capturingPublisher) Publish(event string, payload interface{}) {
	p.events = append(p.events, event)
}

func engineConfig() config.Config {
	return config.Config{
		Bot: config.BotConfig{
			Mode:          config.ModeDemo,
			Symbol:        "BTCUSDT",
			BaseCurrency:  "BTC",
			QuoteCurrency: "USDT",
			CycleInterval: 50 * time.Millisecond,
		},
		Risk: config.RiskConfig{
			MaxPositionPercent: 5,
			RiskPerTrade:       0.02,
			StopLossPercent:    2,
			TakeProfitPercent:  4,
			MaxDailyTrades:     10,
			MinConfidence:      0.7,
			MinRiskReward:      1.5,
		},
	}
}

func bullishSnapshot() *types.MarketSnapshot {
	price := 50000.0
	return &types.MarketSnapshot{
		Symbol: "BTCUSDT",
		Price:  price,
		Indicators: types.IndicatorSnapshot{
			RSI: 25,
			MACD: types.MACDValues{
				MACD: 120, Signal: 108, Histogram: 12,
			},
			MovingAverages: types.MovingAverages{
				SMA20: 49000, SMA50: 48000, EMA12: 49500, EMA26: 49000,
			},
			SupportLevels: []float64{49500},
		},
		Candles: 100,
	}
}

func buildEngine(cfg config.Config, mkt MarketSource, adv Advisor, pub Publisher) (*Engine, *exchange.PaperExchange, *storage.Store) {
	ex := exchange.NewPaperExchange(10000)
	store := storage.NewStore(config.RedisConfig{Enabled: false})
	eng := New(cfg,
		mkt, adv,
		signal.NewScorer(30, 70),
		signal.NewCombiner(cfg.Risk.MinConfidence),
		risk.NewManager(cfg.Risk),
		ex, store,
		notification.NewManager(50),
		pub)
	return eng, ex, store
}

func TestRunCycleExecutesApprovedBuy(t *testing.T) {
	advisorOpinion := types.SignalOpinion{
		Symbol:     "BTCUSDT",
		Action:     types.ActionBuy,
		Confidence: 0.85,
		EntryPrice: 50000,
		StopLoss:   48750,
		TakeProfit: 52000,
		RiskLevel:  types.RiskLow,
		Reasoning:  "strong setup",
		Sentiment:  types.SentimentBullish,
	}

	pub := &capturingPublisher{}
	eng, ex, store := buildEngine(engineConfig(),
		&fakeMarket{snap: bullishSnapshot()},
		&fakeAdvisor{opinion: advisorOpinion},
		pub)

	result, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error: %v", err)
	}

	if result.Combined.Action != types.ActionBuy {
		t.Fatalf("combined action = %v, want BUY", result.Combined.Action)
	}
	if result.Risk == nil || !result.Risk.Approved {
		t.Fatalf("risk = %+v, want an approval", result.Risk)
	}
	if result.Trade == nil {
		t.Fatal("Trade = nil, want an executed order")
	}

	if got := len(ex.OrderHistory(0)); got != 1 {
		t.Errorf("order history = %d entries, want 1", got)
	}
	if sig := store.LatestSignal(); sig == nil || sig.Action != types.ActionBuy {
		t.Errorf("stored signal = %+v, want the combined BUY", sig)
	}
	if trades := store.Trades(0); len(trades) != 1 {
		t.Errorf("stored trades = %d, want 1", len(trades))
	}
	if len(pub.events) != 1 || pub.events[0] != "cycle" {
		t.Errorf("published events = %v, want one cycle event", pub.events)
	}
}

func TestRunCycleHoldsWithoutTrading(t *testing.T) {
	// A low-confidence advisor drags the combined confidence below the
	// floor, which downgrades to HOLD.
	advisorOpinion := types.SignalOpinion{
		Symbol:     "BTCUSDT",
		Action:     types.ActionBuy,
		Confidence: 0.4,
		EntryPrice: 50000,
		StopLoss:   48750,
		TakeProfit: 52000,
		RiskLevel:  types.RiskMedium,
	}

	eng, ex, _ := buildEngine(engineConfig(),
		&fakeMarket{snap: bullishSnapshot()},
		&fakeAdvisor{opinion: advisorOpinion},
		nil)

	result, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error: %v", err)
	}

	if result.Combined.Action != types.ActionHold {
		t.Errorf("combined action = %v, want HOLD below the confidence floor", result.Combined.Action)
	}
	if result.Trade != nil {
		t.Errorf("Trade = %+v, want none on HOLD", result.Trade)
	}
	if got := len(ex.OrderHistory(0)); got != 0 {
		t.Errorf("order history = %d entries, want 0", got)
	}
}

func TestRunCycleSingleFlight(t *testing.T) {
	advisorOpinion := types.SignalOpinion{
		Symbol: "BTCUSDT", Action: types.ActionHold, Confidence: 0.8,
		EntryPrice: 50000,
	}

	eng, _, _ := buildEngine(engineConfig(),
		&fakeMarket{snap: bullishSnapshot()},
		&fakeAdvisor{opinion: advisorOpinion, delay: 200 * time.Millisecond},
		nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := eng.RunCycle(context.Background()); err != nil {
			t.Errorf("first RunCycle() error: %v", err)
		}
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := eng.RunCycle(context.Background()); err != ErrCycleInProgress {
		t.Errorf("overlapping RunCycle() error = %v, want ErrCycleInProgress", err)
	}
	<-done
}

func TestRunCycleDeadlineUnblocksStalledFetch(t *testing.T) {
	eng, _, _ := buildEngine(engineConfig(),
		blockedMarket{},
		&fakeAdvisor{opinion: types.SignalOpinion{Action: types.ActionHold, Confidence: 0.8, EntryPrice: 50000}},
		nil)
	eng.cycleTimeout = 50 * time.Millisecond

	type outcome struct {
		result *CycleResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := eng.RunCycle(context.Background())
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		if !errors.Is(out.err, context.DeadlineExceeded) {
			t.Errorf("RunCycle() error = %v, want a deadline exceeded", out.err)
		}
		if out.result != nil {
			t.Errorf("result = %+v, want nil from an aborted cycle", out.result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunCycle() still blocked after 2s, deadline did not fire")
	}

	// The aborted cycle must release the lock for the next tick.
	if _, err := eng.RunCycle(context.Background()); errors.Is(err, ErrCycleInProgress) {
		t.Error("cycle lock still held after the deadline aborted the cycle")
	}
}

func TestStartStop(t *testing.T) {
	advisorOpinion := types.SignalOpinion{
		Symbol: "BTCUSDT", Action: types.ActionHold, Confidence: 0.8,
		EntryPrice: 50000,
	}

	eng, _, store := buildEngine(engineConfig(),
		&fakeMarket{snap: bullishSnapshot()},
		&fakeAdvisor{opinion: advisorOpinion},
		nil)

	eng.Start(context.Background())
	if !eng.Running() {
		t.Fatal("Running() = false after Start()")
	}
	eng.Start(context.Background()) // second Start is a no-op

	// Give the immediate first cycle time to land.
	deadline := time.Now().Add(2 * time.Second)
	for store.LatestSignal() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.LatestSignal() == nil {
		t.Fatal("no signal recorded after the loop started")
	}

	eng.Stop()
	if eng.Running() {
		t.Error("Running() = true after Stop()")
	}
	eng.Stop() // second Stop is a no-op
}

func TestStatusFields(t *testing.T) {
	eng, _, _ := buildEngine(engineConfig(),
		&fakeMarket{snap: bullishSnapshot()},
		&fakeAdvisor{opinion: types.SignalOpinion{Action: types.ActionHold, Confidence: 0.8, EntryPrice: 50000}},
		nil)

	status := eng.Status()
	if status["running"] != false {
		t.Errorf("running = %v, want false before Start", status["running"])
	}
	if status["symbol"] != "BTCUSDT" {
		t.Errorf("symbol = %v, want BTCUSDT", status["symbol"])
	}

	if _, err := eng.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error: %v", err)
	}
	status = eng.Status()
	if status["cycles"] != 1 {
		t.Errorf("cycles = %v, want 1", status["cycles"])
	}
	if eng.LastResult() == nil {
		t.Error("LastResult() = nil after a completed cycle")
	}
}
