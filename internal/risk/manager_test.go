package risk

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"broski-bot/config"
	"broski-bot/internal/strategy"
)

func testManager() *Manager {
	return NewManager(
		config.RiskConfig{
			StopLossPercentage:    2.0,
			TakeProfitPercentage:  4.0,
			MaxDailyTrades:        3,
			MaxOpenPositions:      2,
			MaxExposurePercentage: 50.0,
		},
		config.TradingConfig{
			BaseSymbol:      "BTC",
			QuoteSymbol:     "USDT",
			TradeAmount:     10.0,
			MaxPositionSize: 12.0,
		},
		zerolog.Nop(),
	)
}

func strength(v float64) *float64 { return &v }

// TestPositionSizeScaling verifies size = base × (0.5 + 0.5×strength)
func TestPositionSizeScaling(t *testing.T) {
	m := testManager()

	cases := []struct {
		name     string
		strength *float64
		want     float64
	}{
		{"nil strength means full size", nil, 10.0},
		{"zero strength halves the base", strength(0), 5.0},
		{"mid strength", strength(0.5), 7.5},
		{"full strength", strength(1), 10.0},
		{"strength above one is clamped", strength(5), 10.0},
		{"negative strength is clamped", strength(-1), 5.0},
	}
	for _, tc := range cases {
		if got := m.CalculatePositionSize(tc.strength); got != tc.want {
			t.Errorf("%s: got %f, want %f", tc.name, got, tc.want)
		}
	}
}

// TestPositionSizeCap verifies the max_position_size clamp
func TestPositionSizeCap(t *testing.T) {
	m := testManager()
	m.trading.TradeAmount = 20.0 // full-strength size 20 exceeds the 12 cap

	if got := m.CalculatePositionSize(nil); got != 12.0 {
		t.Errorf("expected cap at 12, got %f", got)
	}
}

// TestDailyLimitSlidingWindow verifies old trades age out of the 24h window
func TestDailyLimitSlidingWindow(t *testing.T) {
	m := testManager()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	buy := &strategy.Signal{Type: strategy.SignalBuy, Price: 100, Strategy: "rsi_strategy"}

	for i := 0; i < 3; i++ {
		if got := m.FilterSignals([]*strategy.Signal{buy}); len(got) != 1 {
			t.Fatalf("trade %d: expected approval, got %d signals", i, len(got))
		}
	}

	if got := m.FilterSignals([]*strategy.Signal{buy}); len(got) != 0 {
		t.Fatal("expected fourth trade blocked by daily limit")
	}

	// 25 hours later the window has emptied.
	now = now.Add(25 * time.Hour)
	if got := m.FilterSignals([]*strategy.Signal{buy}); len(got) != 1 {
		t.Fatal("expected approval after the window slid past old trades")
	}
}

// TestDailyWindowCountsSells verifies approved sells consume a daily slot
// just like buys
func TestDailyWindowCountsSells(t *testing.T) {
	m := testManager()

	sell := &strategy.Signal{Type: strategy.SignalSell, Price: 100, Strategy: "rsi_strategy"}
	if got := m.FilterSignals([]*strategy.Signal{sell}); len(got) != 1 {
		t.Fatalf("expected sell approval, got %d signals", len(got))
	}
	if got := m.Metrics().DailyTrades; got != 1 {
		t.Errorf("daily trades %d after approved sell, want 1", got)
	}

	// Sells are not gated by the limit, but they still fill the window the
	// next buy is checked against.
	m.FilterSignals([]*strategy.Signal{sell, sell})
	buy := &strategy.Signal{Type: strategy.SignalBuy, Price: 100, Strategy: "rsi_strategy"}
	if got := m.FilterSignals([]*strategy.Signal{buy}); len(got) != 0 {
		t.Error("expected buy blocked by a window filled with sells")
	}
}

// TestMaxOpenPositions verifies the position-count gate
func TestMaxOpenPositions(t *testing.T) {
	m := testManager()

	m.AddPosition(Position{TradeID: "a", Symbol: "BTCUSDT", Value: 10})
	if ok, _ := m.CanOpenNewPosition(); !ok {
		t.Fatal("expected one position to be allowed below the limit")
	}

	m.AddPosition(Position{TradeID: "b", Symbol: "BTCUSDT", Value: 10})
	ok, reason := m.CanOpenNewPosition()
	if ok {
		t.Fatal("expected block at max open positions")
	}
	if reason == "" {
		t.Error("expected a reason for the block")
	}

	m.RemovePosition("a")
	if ok, _ := m.CanOpenNewPosition(); !ok {
		t.Fatal("expected room after removing a position")
	}
}

// TestExposureLimit verifies the exposure percentage gate
func TestExposureLimit(t *testing.T) {
	m := testManager()
	m.UpdatePortfolio(100.0)

	m.AddPosition(Position{TradeID: "a", Symbol: "BTCUSDT", Value: 60})
	ok, reason := m.CanOpenNewPosition()
	if ok {
		t.Fatalf("expected exposure block at 60%% of a 100 balance")
	}
	if reason == "" {
		t.Error("expected a reason for the block")
	}
}

// TestExitLevelsDirection verifies SL/TP land on the correct side of entry
func TestExitLevelsDirection(t *testing.T) {
	m := testManager()

	sl, tp := m.exitLevels(strategy.SignalBuy, 100)
	if sl != 98 || tp != 104 {
		t.Errorf("buy levels: got SL %f TP %f, want 98/104", sl, tp)
	}

	sl, tp = m.exitLevels(strategy.SignalSell, 100)
	if sl != 102 || tp != 96 {
		t.Errorf("sell levels: got SL %f TP %f, want 102/96", sl, tp)
	}
}

// TestShouldClosePosition verifies the P&L thresholds
func TestShouldClosePosition(t *testing.T) {
	m := testManager()
	pos := Position{TradeID: "a", Side: "buy", EntryPrice: 100}

	if close, _ := m.ShouldClosePosition(pos, 99); close {
		t.Error("−1%: should stay open")
	}
	if close, reason := m.ShouldClosePosition(pos, 98); !close || reason == "" {
		t.Error("−2%: expected stop loss")
	}
	if close, reason := m.ShouldClosePosition(pos, 104); !close || reason == "" {
		t.Error("+4%: expected take profit")
	}

	short := Position{TradeID: "b", Side: "sell", EntryPrice: 100}
	if close, _ := m.ShouldClosePosition(short, 102); !close {
		t.Error("short −2%: expected stop loss")
	}
	if close, _ := m.ShouldClosePosition(short, 96); !close {
		t.Error("short +4%: expected take profit")
	}
}

// TestFilterSignalsDropsMalformed verifies zero-price signals fail closed
func TestFilterSignalsDropsMalformed(t *testing.T) {
	m := testManager()

	got := m.FilterSignals([]*strategy.Signal{
		nil,
		{Type: strategy.SignalBuy, Price: 0},
		{Type: strategy.SignalBuy, Price: -5},
	})
	if len(got) != 0 {
		t.Errorf("expected all malformed signals dropped, got %d", len(got))
	}
}

// TestFilterSignalsAnnotates verifies size and exit levels are attached
func TestFilterSignalsAnnotates(t *testing.T) {
	m := testManager()

	got := m.FilterSignals([]*strategy.Signal{
		{Type: strategy.SignalBuy, Price: 100, Strategy: "rsi_strategy", Strength: strength(1)},
	})
	if len(got) != 1 {
		t.Fatalf("expected one approved signal, got %d", len(got))
	}

	adj := got[0]
	if adj.PositionSize != 10 {
		t.Errorf("position size %f, want 10", adj.PositionSize)
	}
	if adj.StopLoss != 98 || adj.TakeProfit != 104 {
		t.Errorf("exit levels SL %f TP %f, want 98/104", adj.StopLoss, adj.TakeProfit)
	}
}

// TestMetricsSnapshot verifies the risk state view
func TestMetricsSnapshot(t *testing.T) {
	m := testManager()
	m.UpdatePortfolio(200)
	m.AddPosition(Position{TradeID: "a", Symbol: "BTCUSDT", Value: 50})

	metrics := m.Metrics()
	if metrics.OpenPositions != 1 {
		t.Errorf("open positions %d, want 1", metrics.OpenPositions)
	}
	if metrics.CurrentExposure != 50 {
		t.Errorf("exposure %f, want 50", metrics.CurrentExposure)
	}
	if metrics.ExposurePercentage != 25 {
		t.Errorf("exposure pct %f, want 25", metrics.ExposurePercentage)
	}
}
