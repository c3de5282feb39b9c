package ledger

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	store := NewJSONStore(filepath.Join(t.TempDir(), "trade_history.json"))
	l, err := New(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("creating ledger: %v", err)
	}
	return l
}

func openTrade(id string, side string, amount, price float64, strategy string) *Trade {
	return &Trade{
		ID:        id,
		Symbol:    "BTCUSDT",
		Side:      side,
		Amount:    amount,
		Price:     price,
		Value:     amount * price,
		Timestamp: 1000,
		Status:    StatusOpen,
		Strategy:  strategy,
		Success:   true,
	}
}

// TestRecordAndCloseByID verifies the full open/close round trip
func TestRecordAndCloseByID(t *testing.T) {
	l := testLedger(t)

	if err := l.RecordTrade(openTrade("t1", "buy", 0.001, 50000, "rsi_strategy")); err != nil {
		t.Fatalf("recording: %v", err)
	}
	if got := len(l.OpenTrades()); got != 1 {
		t.Fatalf("open trades %d, want 1", got)
	}

	closed, err := l.CloseTrade("t1", 52000, 2000)
	if err != nil {
		t.Fatalf("closing: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Errorf("status %s, want closed", closed.Status)
	}
	wantPnL := (52000.0 - 50000.0) * 0.001
	if math.Abs(*closed.PnL-wantPnL) > 1e-9 {
		t.Errorf("pnl %f, want %f", *closed.PnL, wantPnL)
	}
	if math.Abs(*closed.PnLPct-4.0) > 1e-9 {
		t.Errorf("pnl pct %f, want 4", *closed.PnLPct)
	}
	if got := len(l.OpenTrades()); got != 0 {
		t.Errorf("open trades %d after close, want 0", got)
	}
}

// TestCloseDisambiguatesIdenticalPositions verifies two same-sized positions
// close independently by ID, the case attribute matching cannot distinguish
func TestCloseDisambiguatesIdenticalPositions(t *testing.T) {
	l := testLedger(t)

	if err := l.RecordTrade(openTrade("t1", "buy", 0.001, 50000, "rsi_strategy")); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordTrade(openTrade("t2", "buy", 0.001, 50000, "rsi_strategy")); err != nil {
		t.Fatal(err)
	}

	if _, err := l.CloseTrade("t2", 51000, 2000); err != nil {
		t.Fatalf("closing t2: %v", err)
	}

	if l.Trade("t1").Status != StatusOpen {
		t.Error("t1 should still be open")
	}
	if l.Trade("t2").Status != StatusClosed {
		t.Error("t2 should be closed")
	}

	// Closing t2 again must fail rather than silently touching t1.
	if _, err := l.CloseTrade("t2", 51000, 3000); err == nil {
		t.Error("expected error re-closing t2")
	}
}

// TestCloseUnknownTrade verifies a missing ID errors cleanly
func TestCloseUnknownTrade(t *testing.T) {
	l := testLedger(t)
	if _, err := l.CloseTrade("nope", 100, 1000); err == nil {
		t.Error("expected error for unknown trade")
	}
}

// TestMetricsAccounting verifies win rate, gross figures and profit factor
func TestMetricsAccounting(t *testing.T) {
	l := testLedger(t)

	book := []struct {
		id         string
		closePrice float64
	}{
		{"w1", 110}, // +10
		{"w2", 105}, // +5
		{"l1", 94},  // -6
	}
	for _, b := range book {
		if err := l.RecordTrade(openTrade(b.id, "buy", 1, 100, "rsi_strategy")); err != nil {
			t.Fatal(err)
		}
		if _, err := l.CloseTrade(b.id, b.closePrice, 2000); err != nil {
			t.Fatal(err)
		}
	}

	m := l.Metrics()
	if m.ClosedTrades != 3 || m.WinningTrades != 2 || m.LosingTrades != 1 {
		t.Errorf("counts: closed %d wins %d losses %d", m.ClosedTrades, m.WinningTrades, m.LosingTrades)
	}
	if math.Abs(m.WinRate-200.0/3) > 1e-9 {
		t.Errorf("win rate %f, want %f", m.WinRate, 200.0/3)
	}
	if math.Abs(m.GrossProfit-15) > 1e-9 || math.Abs(m.GrossLoss-(-6)) > 1e-9 {
		t.Errorf("gross profit %f loss %f, want 15/-6", m.GrossProfit, m.GrossLoss)
	}
	if math.Abs(m.TotalPnL-(m.GrossProfit+m.GrossLoss)) > 1e-9 {
		t.Errorf("total pnl %f should equal gross profit + gross loss", m.TotalPnL)
	}
	if math.Abs(m.ProfitFactor-2.5) > 1e-9 {
		t.Errorf("profit factor %f, want 2.5", m.ProfitFactor)
	}
	if m.LargestWin != 10 || m.LargestLoss != -6 {
		t.Errorf("largest win %f loss %f, want 10/-6", m.LargestWin, m.LargestLoss)
	}

	sm := m.ByStrategy["rsi_strategy"]
	if sm.Trades != 3 || sm.Wins != 2 {
		t.Errorf("strategy breakdown: trades %d wins %d", sm.Trades, sm.Wins)
	}
}

// TestMaxDrawdown verifies peak-to-trough on the cumulative P&L curve
func TestMaxDrawdown(t *testing.T) {
	l := testLedger(t)

	// Cumulative: +10, +15, +3, +1, +8. Peak 15, trough 1, drawdown 14.
	pnls := []float64{10, 5, -12, -2, 7}
	for i, pnl := range pnls {
		id := string(rune('a' + i))
		if err := l.RecordTrade(openTrade(id, "buy", 1, 100, "rsi_strategy")); err != nil {
			t.Fatal(err)
		}
		if _, err := l.CloseTrade(id, 100+pnl, 2000); err != nil {
			t.Fatal(err)
		}
	}

	if got := l.Metrics().MaxDrawdown; math.Abs(got-14) > 1e-9 {
		t.Errorf("max drawdown %f, want 14", got)
	}
}

// TestFailedTradesExcludedFromPerformance verifies error records don't skew
// metrics
func TestFailedTradesExcludedFromPerformance(t *testing.T) {
	l := testLedger(t)

	failed := openTrade("f1", "buy", 1, 100, "rsi_strategy")
	failed.Success = false
	failed.Status = StatusClosed
	failed.ErrorType = "Insufficient funds"
	if err := l.RecordTrade(failed); err != nil {
		t.Fatal(err)
	}

	m := l.Metrics()
	if m.FailedTrades != 1 {
		t.Errorf("failed trades %d, want 1", m.FailedTrades)
	}
	if m.TotalTrades != 0 || m.ClosedTrades != 0 {
		t.Errorf("failed record leaked into performance: total %d closed %d", m.TotalTrades, m.ClosedTrades)
	}
}

// TestJSONStorePersistence verifies history survives a reload
func TestJSONStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_history.json")

	store := NewJSONStore(path)
	l, err := New(store, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.RecordTrade(openTrade("t1", "buy", 0.5, 200, "macd_strategy")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CloseTrade("t1", 210, 2000); err != nil {
		t.Fatal(err)
	}

	reloaded, err := New(NewJSONStore(path), zerolog.Nop())
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}

	got := reloaded.Trade("t1")
	if got == nil {
		t.Fatal("trade missing after reload")
	}
	if got.Status != StatusClosed || got.PnL == nil || math.Abs(*got.PnL-5) > 1e-9 {
		t.Errorf("reloaded trade lost close state: %+v", got)
	}
	if m := reloaded.Metrics(); m.ClosedTrades != 1 {
		t.Errorf("reloaded metrics closed %d, want 1", m.ClosedTrades)
	}
}

// TestEquityCurve verifies the cumulative curve ordering
func TestEquityCurve(t *testing.T) {
	l := testLedger(t)

	for i, pnl := range []float64{5, -2} {
		id := string(rune('a' + i))
		if err := l.RecordTrade(openTrade(id, "buy", 1, 100, "rsi_strategy")); err != nil {
			t.Fatal(err)
		}
		if _, err := l.CloseTrade(id, 100+pnl, int64(2000+i)); err != nil {
			t.Fatal(err)
		}
	}

	curve := l.EquityCurve()
	if len(curve) != 2 {
		t.Fatalf("curve length %d, want 2", len(curve))
	}
	if curve[0].Equity != 5 || curve[1].Equity != 3 {
		t.Errorf("curve %v, want equities 5 then 3", curve)
	}
}
