package exchange

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestPaperBuySellRoundtrip(t *testing.T) {
	ctx := context.Background()
	ex := NewPaperExchange(10000)

	trade, err := ex.PlaceBuyOrder(ctx, "BTCUSDT", 0.1, 50000)
	if err != nil {
		t.Fatalf("PlaceBuyOrder() error: %v", err)
	}
	if trade.Cost != 5000 {
		t.Errorf("Cost = %v, want 5000", trade.Cost)
	}
	if trade.ID != "demo_1" {
		t.Errorf("ID = %v, want demo_1", trade.ID)
	}

	balances, _ := ex.Balance(ctx)
	if balances["USDT"] != 5000 {
		t.Errorf("USDT = %v, want 5000 after buy", balances["USDT"])
	}
	if balances["BTC"] != 0.1 {
		t.Errorf("BTC = %v, want 0.1 after buy", balances["BTC"])
	}

	if _, err := ex.PlaceSellOrder(ctx, "BTCUSDT", 0.1, 50000); err != nil {
		t.Fatalf("PlaceSellOrder() error: %v", err)
	}

	// Selling at the same price restores the original balances exactly.
	balances, _ = ex.Balance(ctx)
	if balances["USDT"] != 10000 {
		t.Errorf("USDT = %v, want 10000 after roundtrip", balances["USDT"])
	}
	if balances["BTC"] != 0 {
		t.Errorf("BTC = %v, want 0 after roundtrip", balances["BTC"])
	}
}

func TestPaperInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	ex := NewPaperExchange(1000)

	_, err := ex.PlaceBuyOrder(ctx, "BTCUSDT", 1, 50000)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("PlaceBuyOrder() error = %v, want ErrInsufficientFunds", err)
	}

	// A rejected order must not touch the balances.
	balances, _ := ex.Balance(ctx)
	if balances["USDT"] != 1000 {
		t.Errorf("USDT = %v, want untouched 1000", balances["USDT"])
	}
	if len(ex.OrderHistory(0)) != 0 {
		t.Error("rejected order must not be recorded")
	}
}

func TestPaperInsufficientHoldings(t *testing.T) {
	ctx := context.Background()
	ex := NewPaperExchange(10000)

	_, err := ex.PlaceSellOrder(ctx, "BTCUSDT", 0.5, 50000)
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("PlaceSellOrder() error = %v, want ErrInsufficientHoldings", err)
	}
}

func TestPaperInvalidOrder(t *testing.T) {
	ctx := context.Background()
	ex := NewPaperExchange(10000)

	if _, err := ex.PlaceBuyOrder(ctx, "BTCUSDT", 0, 50000); err == nil {
		t.Error("zero amount should be rejected")
	}
	if _, err := ex.PlaceBuyOrder(ctx, "BTCUSDT", 0.1, -1); err == nil {
		t.Error("negative price should be rejected")
	}
}

func TestPaperPositionsAverageEntry(t *testing.T) {
	ctx := context.Background()
	ex := NewPaperExchange(100000)

	ex.PlaceBuyOrder(ctx, "BTCUSDT", 0.1, 40000)
	ex.PlaceBuyOrder(ctx, "BTCUSDT", 0.1, 50000)

	positions, err := ex.Positions(ctx, 60000)
	if err != nil {
		t.Fatalf("Positions() error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("len(positions) = %d, want 1", len(positions))
	}

	p := positions[0]
	if math.Abs(p.Amount-0.2) > 1e-9 {
		t.Errorf("Amount = %v, want 0.2", p.Amount)
	}
	if math.Abs(p.EntryPrice-45000) > 1e-9 {
		t.Errorf("EntryPrice = %v, want volume-weighted 45000", p.EntryPrice)
	}
	if math.Abs(p.UnrealizedPnL-(60000-45000)*0.2) > 1e-6 {
		t.Errorf("UnrealizedPnL = %v, want 3000", p.UnrealizedPnL)
	}
}

func TestPaperPositionsClosedOut(t *testing.T) {
	ctx := context.Background()
	ex := NewPaperExchange(100000)

	ex.PlaceBuyOrder(ctx, "BTCUSDT", 0.1, 40000)
	ex.PlaceSellOrder(ctx, "BTCUSDT", 0.1, 42000)

	positions, _ := ex.Positions(ctx, 42000)
	if len(positions) != 0 {
		t.Errorf("positions = %v, want none after closing out", positions)
	}
}

func TestPaperTradesToday(t *testing.T) {
	ctx := context.Background()
	ex := NewPaperExchange(100000)

	ex.PlaceBuyOrder(ctx, "BTCUSDT", 0.01, 50000)
	ex.PlaceBuyOrder(ctx, "BTCUSDT", 0.01, 50000)

	if got := ex.TradesToday(time.Now()); got != 2 {
		t.Errorf("TradesToday() = %d, want 2", got)
	}
	// A different day sees none of today's trades.
	if got := ex.TradesToday(time.Now().AddDate(0, 0, 1)); got != 0 {
		t.Errorf("TradesToday(tomorrow) = %d, want 0", got)
	}
}

func TestPaperOrderHistoryLimit(t *testing.T) {
	ctx := context.Background()
	ex := NewPaperExchange(100000)

	for i := 0; i < 5; i++ {
		ex.PlaceBuyOrder(ctx, "BTCUSDT", 0.001, 50000)
	}

	history := ex.OrderHistory(3)
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	// Oldest first within the returned window.
	if history[0].ID != "demo_3" || history[2].ID != "demo_5" {
		t.Errorf("history IDs = %v..%v, want demo_3..demo_5", history[0].ID, history[2].ID)
	}
}

func TestSplitSymbol(t *testing.T) {
	tests := []struct {
		symbol    string
		wantBase  string
		wantQuote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"ethusdt", "ETH", "USDT"},
		{"BTC", "BTC", "USDT"},
	}
	for _, tt := range tests {
		base, quote := splitSymbol(tt.symbol)
		if base != tt.wantBase || quote != tt.wantQuote {
			t.Errorf("splitSymbol(%q) = %q/%q, want %q/%q",
				tt.symbol, base, quote, tt.wantBase, tt.wantQuote)
		}
	}
}
